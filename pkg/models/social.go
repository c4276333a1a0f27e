package models

import (
	"time"
)

type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Title     string    `gorm:"type:varchar(200);not null" json:"title"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Type      string    `gorm:"type:varchar(50)" json:"type"`
	Link      string    `gorm:"type:varchar(255)" json:"link,omitempty"`
	IsRead    bool      `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

type CommunityPost struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	UserID     uint             `gorm:"not null;index" json:"user_id"`
	Author     *User            `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
	Title      string           `gorm:"type:varchar(200);not null" json:"title"`
	Content    string           `gorm:"type:text;not null" json:"content"`
	Category   string           `gorm:"type:varchar(50);default:'general';index" json:"category"`
	PostType   string           `gorm:"type:varchar(20);default:'discussion'" json:"post_type"`
	IsPublic   bool             `gorm:"not null;default:true" json:"is_public"`
	IsPinned   bool             `gorm:"not null;default:false" json:"is_pinned"`
	IsClosed   bool             `gorm:"not null;default:false" json:"is_closed"`
	ViewCount  int              `gorm:"not null;default:0" json:"view_count"`
	ReplyCount int              `gorm:"not null;default:0" json:"reply_count"`
	LikeCount  int              `gorm:"not null;default:0" json:"like_count"`
	Replies    []CommunityReply `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"replies,omitempty"`
	Likes      []PostLike       `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt  time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func (CommunityPost) TableName() string {
	return "community_posts"
}

type CommunityReply struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	PostID     uint           `gorm:"not null;index" json:"post_id"`
	UserID     uint           `gorm:"not null;index" json:"user_id"`
	Content    string         `gorm:"type:text;not null" json:"content"`
	IsSolution bool           `gorm:"not null;default:false" json:"is_solution"`
	LikeCount  int            `gorm:"not null;default:0" json:"like_count"`
	Mentions   []ReplyMention `gorm:"foreignKey:ReplyID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (CommunityReply) TableName() string {
	return "community_replies"
}

type PostLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_post_like_user" json:"post_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_post_like_user" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (PostLike) TableName() string {
	return "post_likes"
}

type ReplyMention struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ReplyID         uint      `gorm:"not null;index" json:"reply_id"`
	MentionedUserID uint      `gorm:"not null;index" json:"mentioned_user_id"`
	IsRead          bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt       time.Time `json:"created_at"`
}

func (ReplyMention) TableName() string {
	return "reply_mentions"
}

type DirectMessage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SenderID   uint      `gorm:"not null;index" json:"sender_id"`
	ReceiverID uint      `gorm:"not null;index" json:"receiver_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	IsRead     bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (DirectMessage) TableName() string {
	return "direct_messages"
}

type ChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Room      string    `gorm:"type:varchar(50);not null;default:'general';index" json:"room"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
