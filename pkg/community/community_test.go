package community_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/evansochadeka/BenFarm/pkg/apperr"
	"github.com/evansochadeka/BenFarm/pkg/community"
	"github.com/evansochadeka/BenFarm/pkg/config"
	"github.com/evansochadeka/BenFarm/pkg/models"
	"github.com/evansochadeka/BenFarm/pkg/notify"
	"github.com/evansochadeka/BenFarm/pkg/testutil"
)

func newService(t *testing.T, cfg config.CommunityConfig) (*community.Service, *gorm.DB) {
	t.Helper()
	db := testutil.DB(t)
	sender := notify.SyncSender{Notifier: notify.NewNotifier(db, zap.NewNop())}
	return community.NewService(db, sender, cfg, zap.NewNop()), db
}

func TestMentions(t *testing.T) {
	assert.Equal(t, []string{"jane", "otieno"}, community.Mentions("thanks @Jane and @otieno, also @jane"))
	assert.Empty(t, community.Mentions("no handles here, mail me at x @ y"))
}

func TestCreateAndListPosts(t *testing.T) {
	svc, db := newService(t, config.CommunityConfig{PostsPerPage: 2, MaxPostLength: 50})
	ctx := context.Background()
	author := testutil.User(t, db, models.RoleFarmer)

	_, err := svc.CreatePost(ctx, author.ID, community.PostInput{Title: " ", Content: "x"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.CreatePost(ctx, author.ID, community.PostInput{Title: "t", Content: strings.Repeat("a", 51)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.CreatePost(ctx, author.ID, community.PostInput{Title: "t", Content: "c", Category: "politics"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	first, err := svc.CreatePost(ctx, author.ID, community.PostInput{Title: "Maize rust", Content: "help", Category: "crops"})
	require.NoError(t, err)
	_, err = svc.CreatePost(ctx, author.ID, community.PostInput{Title: "Goats", Content: "tips", Category: "livestock"})
	require.NoError(t, err)
	third, err := svc.CreatePost(ctx, author.ID, community.PostInput{Title: "Hello", Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "general", third.Category)

	_, err = svc.TogglePin(ctx, first.ID)
	require.NoError(t, err)

	page, err := svc.ListPosts(ctx, "", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Posts, 2)
	assert.Equal(t, first.ID, page.Posts[0].ID, "pinned post leads")
	assert.Equal(t, third.ID, page.Posts[1].ID)

	page, err = svc.ListPosts(ctx, "livestock", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	post, err := svc.GetPost(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, post.ViewCount)
	_, err = svc.GetPost(ctx, 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestReplyNotifiesAuthorAndMentions(t *testing.T) {
	svc, db := newService(t, config.CommunityConfig{})
	ctx := context.Background()
	author := testutil.User(t, db, models.RoleFarmer)
	replier := testutil.User(t, db, models.RoleExtensionOfficer)
	friend := testutil.User(t, db, models.RoleFarmer, func(u *models.User) { u.FullName = "Jane Wambui" })

	post, err := svc.CreatePost(ctx, author.ID, community.PostInput{Title: "Tomato blight", Content: "leaves curling"})
	require.NoError(t, err)

	handle := "@" + strings.ReplaceAll(replier.FullName, " ", "")
	reply, err := svc.Reply(ctx, replier, post.ID, "try copper spray @JaneWambui "+handle)
	require.NoError(t, err)

	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Notification{}, "user_id = ? AND type = ?", author.ID, notify.TypeCommunity))
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Notification{}, "user_id = ? AND type = ?", friend.ID, notify.TypeMention))
	assert.Zero(t, testutil.Count(t, db, &models.Notification{}, "user_id = ?", replier.ID), "self mention is skipped")
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.ReplyMention{}, "reply_id = ?", reply.ID))

	// replying to your own post does not notify you
	_, err = svc.Reply(ctx, author, post.ID, "thanks")
	require.NoError(t, err)
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Notification{}, "user_id = ?", author.ID))

	got, err := svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ReplyCount)
	require.Len(t, got.Replies, 2)
	assert.Equal(t, reply.ID, got.Replies[0].ID)
}

func TestClosedPostRejectsReplies(t *testing.T) {
	svc, db := newService(t, config.CommunityConfig{})
	ctx := context.Background()
	author := testutil.User(t, db, models.RoleFarmer)
	post, err := svc.CreatePost(ctx, author.ID, community.PostInput{Title: "t", Content: "c"})
	require.NoError(t, err)

	closed, err := svc.ToggleClose(ctx, post.ID)
	require.NoError(t, err)
	assert.True(t, closed.IsClosed)

	_, err = svc.Reply(ctx, author, post.ID, "late")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Zero(t, testutil.Count(t, db, &models.CommunityReply{}))
}

func TestToggleLike(t *testing.T) {
	svc, db := newService(t, config.CommunityConfig{})
	ctx := context.Background()
	author := testutil.User(t, db, models.RoleFarmer)
	fan := testutil.User(t, db, models.RoleAgrovet)
	post, err := svc.CreatePost(ctx, author.ID, community.PostInput{Title: "t", Content: "c"})
	require.NoError(t, err)

	liked, err := svc.ToggleLike(ctx, fan, post.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	liked, err = svc.ToggleLike(ctx, author, post.ID)
	require.NoError(t, err)
	assert.True(t, liked)

	got, err := svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.LikeCount)
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Notification{}, "user_id = ?", author.ID))

	liked, err = svc.ToggleLike(ctx, fan, post.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	got, err = svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.LikeCount)
}

func TestDeletePostRemovesChildren(t *testing.T) {
	svc, db := newService(t, config.CommunityConfig{})
	ctx := context.Background()
	author := testutil.User(t, db, models.RoleFarmer)
	other := testutil.User(t, db, models.RoleFarmer)
	post, err := svc.CreatePost(ctx, author.ID, community.PostInput{Title: "t", Content: "c"})
	require.NoError(t, err)
	_, err = svc.Reply(ctx, other, post.ID, "hey @"+strings.ReplaceAll(author.FullName, " ", ""))
	require.NoError(t, err)
	_, err = svc.ToggleLike(ctx, other, post.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeletePost(ctx, post.ID))
	assert.Zero(t, testutil.Count(t, db, &models.CommunityPost{}))
	assert.Zero(t, testutil.Count(t, db, &models.CommunityReply{}))
	assert.Zero(t, testutil.Count(t, db, &models.PostLike{}))
	assert.Zero(t, testutil.Count(t, db, &models.ReplyMention{}))
	assert.ErrorIs(t, svc.DeletePost(ctx, post.ID), apperr.ErrNotFound)
}
