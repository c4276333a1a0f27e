package community

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/evansochadeka/BenFarm/pkg/apperr"
	"github.com/evansochadeka/BenFarm/pkg/config"
	"github.com/evansochadeka/BenFarm/pkg/models"
	"github.com/evansochadeka/BenFarm/pkg/notify"
)

var Categories = []string{"general", "farming", "livestock", "crops", "questions", "help"}

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// ErrPostClosed is returned when replying to a closed post.
var ErrPostClosed = apperr.Invalid("post is closed for replies")

type Service struct {
	db     *gorm.DB
	sender notify.Sender
	cfg    config.CommunityConfig
	logger *zap.Logger
}

func NewService(db *gorm.DB, sender notify.Sender, cfg config.CommunityConfig, logger *zap.Logger) *Service {
	if cfg.PostsPerPage <= 0 {
		cfg.PostsPerPage = 20
	}
	return &Service{db: db, sender: sender, cfg: cfg, logger: logger.Named("community")}
}

type PostInput struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
	PostType string `json:"post_type"`
}

type Page struct {
	Posts   []models.CommunityPost `json:"posts"`
	Total   int64                  `json:"total"`
	Page    int                    `json:"page"`
	PerPage int                    `json:"per_page"`
}

func validCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ListPosts returns public posts, pinned first then newest.
func (s *Service) ListPosts(ctx context.Context, category string, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	q := s.db.WithContext(ctx).Model(&models.CommunityPost{}).Where("is_public = ?", true)
	if category != "" && category != "all" {
		q = q.Where("category = ?", category)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count posts: %w", err)
	}
	var posts []models.CommunityPost
	err := q.Preload("Author").
		Order("is_pinned DESC").Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * s.cfg.PostsPerPage).Limit(s.cfg.PostsPerPage).
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return &Page{Posts: posts, Total: total, Page: page, PerPage: s.cfg.PostsPerPage}, nil
}

func (s *Service) find(ctx context.Context, id uint) (*models.CommunityPost, error) {
	var post models.CommunityPost
	if err := s.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("post")
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &post, nil
}

// GetPost counts a view and returns the post with solutions first, then replies oldest first.
func (s *Service) GetPost(ctx context.Context, id uint) (*models.CommunityPost, error) {
	res := s.db.WithContext(ctx).Model(&models.CommunityPost{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1"))
	if res.Error != nil {
		return nil, fmt.Errorf("failed to count view: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("post")
	}
	var post models.CommunityPost
	err := s.db.WithContext(ctx).Preload("Author").
		Preload("Replies", func(db *gorm.DB) *gorm.DB {
			return db.Order("is_solution DESC").Order("created_at ASC").Order("id ASC")
		}).
		First(&post, id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &post, nil
}

func (s *Service) CreatePost(ctx context.Context, authorID uint, in PostInput) (*models.CommunityPost, error) {
	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)
	if title == "" || content == "" {
		return nil, apperr.Invalid("title and content are required")
	}
	if len(title) > 200 {
		return nil, apperr.Invalid("title is too long")
	}
	if s.cfg.MaxPostLength > 0 && len(content) > s.cfg.MaxPostLength {
		return nil, apperr.Invalid("content exceeds %d characters", s.cfg.MaxPostLength)
	}
	category := in.Category
	if category == "" {
		category = "general"
	}
	if !validCategory(category) {
		return nil, apperr.Invalid("unknown category %q", category)
	}
	postType := in.PostType
	if postType == "" {
		postType = "discussion"
	}
	post := &models.CommunityPost{
		UserID:   authorID,
		Title:    title,
		Content:  content,
		Category: category,
		PostType: postType,
		IsPublic: true,
	}
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	return post, nil
}

// Reply adds a reply, bumps the reply count and records @mentions.
func (s *Service) Reply(ctx context.Context, author *models.User, postID uint, content string) (*models.CommunityReply, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Invalid("reply content is required")
	}
	if s.cfg.MaxReplyLength > 0 && len(content) > s.cfg.MaxReplyLength {
		return nil, apperr.Invalid("reply exceeds %d characters", s.cfg.MaxReplyLength)
	}
	post, err := s.find(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.IsClosed {
		return nil, ErrPostClosed
	}

	reply := &models.CommunityReply{PostID: post.ID, UserID: author.ID, Content: content}
	var mentioned []models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(reply).Error; err != nil {
			return fmt.Errorf("failed to create reply: %w", err)
		}
		if err := tx.Model(&models.CommunityPost{}).Where("id = ?", post.ID).
			UpdateColumn("reply_count", gorm.Expr("reply_count + 1")).Error; err != nil {
			return fmt.Errorf("failed to count reply: %w", err)
		}
		users, err := resolveMentions(tx, content, author.ID)
		if err != nil {
			return err
		}
		for _, u := range users {
			if err := tx.Create(&models.ReplyMention{ReplyID: reply.ID, MentionedUserID: u.ID}).Error; err != nil {
				return fmt.Errorf("failed to record mention: %w", err)
			}
		}
		mentioned = users
		return nil
	})
	if err != nil {
		return nil, err
	}

	link := fmt.Sprintf("/community/posts/%d#reply-%d", post.ID, reply.ID)
	if post.UserID != author.ID {
		s.send(notify.Message{
			UserID: post.UserID,
			Title:  "New Reply to Your Post",
			Body:   fmt.Sprintf("%s replied to your post: %s", author.FullName, excerpt(post.Title, 50)),
			Type:   notify.TypeCommunity,
			Link:   link,
		})
	}
	for _, u := range mentioned {
		s.send(notify.Message{
			UserID: u.ID,
			Title:  "You were mentioned in a reply",
			Body:   fmt.Sprintf("%s mentioned you in: %s", author.FullName, excerpt(post.Title, 50)),
			Type:   notify.TypeMention,
			Link:   link,
		})
	}
	return reply, nil
}

// Mentions extracts the distinct handles referenced with @ in text.
func Mentions(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		h := strings.ToLower(m[1])
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}

// resolveMentions matches a handle against a user's full name with spaces removed
// or the local part of their email.
func resolveMentions(tx *gorm.DB, content string, authorID uint) ([]models.User, error) {
	handles := Mentions(content)
	if len(handles) == 0 {
		return nil, nil
	}
	var users []models.User
	seen := map[uint]bool{}
	for _, h := range handles {
		var found []models.User
		err := tx.Where("LOWER(REPLACE(full_name, ' ', '')) = ? OR LOWER(email) LIKE ?", h, h+"@%").
			Where("id <> ?", authorID).
			Find(&found).Error
		if err != nil {
			return nil, fmt.Errorf("failed to resolve mention: %w", err)
		}
		for _, u := range found {
			if !seen[u.ID] {
				seen[u.ID] = true
				users = append(users, u)
			}
		}
	}
	return users, nil
}

// ToggleLike likes the post, or removes an existing like. It reports whether the post is now liked.
func (s *Service) ToggleLike(ctx context.Context, user *models.User, postID uint) (bool, error) {
	post, err := s.find(ctx, postID)
	if err != nil {
		return false, err
	}
	liked := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("post_id = ? AND user_id = ?", post.ID, user.ID).Delete(&models.PostLike{})
		if res.Error != nil {
			return fmt.Errorf("failed to remove like: %w", res.Error)
		}
		delta := -1
		if res.RowsAffected == 0 {
			if err := tx.Create(&models.PostLike{PostID: post.ID, UserID: user.ID}).Error; err != nil {
				return fmt.Errorf("failed to add like: %w", err)
			}
			liked = true
			delta = 1
		}
		return tx.Model(&models.CommunityPost{}).Where("id = ?", post.ID).
			UpdateColumn("like_count", gorm.Expr("like_count + ?", delta)).Error
	})
	if err != nil {
		return false, err
	}
	if liked && post.UserID != user.ID {
		s.send(notify.Message{
			UserID: post.UserID,
			Title:  "New Like",
			Body:   fmt.Sprintf("%s liked your post: %s", user.FullName, excerpt(post.Title, 50)),
			Type:   notify.TypeCommunity,
			Link:   fmt.Sprintf("/community/posts/%d", post.ID),
		})
	}
	return liked, nil
}

func (s *Service) toggle(ctx context.Context, id uint, column string) (*models.CommunityPost, error) {
	post, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Model(post).UpdateColumn(column, gorm.Expr("NOT "+column)).Error
	if err != nil {
		return nil, fmt.Errorf("failed to toggle %s: %w", column, err)
	}
	return s.find(ctx, id)
}

func (s *Service) TogglePin(ctx context.Context, id uint) (*models.CommunityPost, error) {
	return s.toggle(ctx, id, "is_pinned")
}

func (s *Service) ToggleClose(ctx context.Context, id uint) (*models.CommunityPost, error) {
	return s.toggle(ctx, id, "is_closed")
}

// DeletePost removes the post along with its replies, likes and mentions.
func (s *Service) DeletePost(ctx context.Context, id uint) error {
	post, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		replies := tx.Model(&models.CommunityReply{}).Select("id").Where("post_id = ?", post.ID)
		if err := tx.Where("reply_id IN (?)", replies).Delete(&models.ReplyMention{}).Error; err != nil {
			return fmt.Errorf("failed to delete mentions: %w", err)
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.CommunityReply{}).Error; err != nil {
			return fmt.Errorf("failed to delete replies: %w", err)
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.PostLike{}).Error; err != nil {
			return fmt.Errorf("failed to delete likes: %w", err)
		}
		if err := tx.Delete(post).Error; err != nil {
			return fmt.Errorf("failed to delete post: %w", err)
		}
		s.logger.Info("Post deleted", zap.Uint("post_id", post.ID))
		return nil
	})
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.CommunityPost{}).Count(&n).Error
	return n, err
}

func (s *Service) send(msg notify.Message) {
	if s.sender != nil {
		s.sender.Send(msg)
	}
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
