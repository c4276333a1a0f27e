package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/evansochadeka/BenFarm/pkg/community"
)

func (g *Gateway) listPosts(c *gin.Context) {
	page, err := g.app.Community.ListPosts(c.Request.Context(), c.Query("category"), intQuery(c, "page", 1))
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (g *Gateway) getPost(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	post, err := g.app.Community.GetPost(c.Request.Context(), id)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

func (g *Gateway) createPost(c *gin.Context) {
	var in community.PostInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	post, err := g.app.Community.CreatePost(c.Request.Context(), currentUser(c).ID, in)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"post": post})
}

type contentRequest struct {
	Content string `json:"content"`
}

func (g *Gateway) replyToPost(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	reply, err := g.app.Community.Reply(c.Request.Context(), currentUser(c), id, req.Content)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"reply": reply})
}

func (g *Gateway) likePost(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	liked, err := g.app.Community.ToggleLike(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": liked})
}

type messageRequest struct {
	ReceiverID uint   `json:"receiver_id"`
	Content    string `json:"content"`
}

func (g *Gateway) sendMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	msg, err := g.app.Messaging.Send(c.Request.Context(), currentUser(c), req.ReceiverID, req.Content)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

func (g *Gateway) conversations(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUser(c).ID
	convs, err := g.app.Messaging.Conversations(ctx, userID)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	unread, err := g.app.Messaging.UnreadCount(ctx, userID)
	if err != nil {
		g.logger.Warn("Failed to count unread messages", zap.Uint("user_id", userID), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs, "unread": unread})
}

func (g *Gateway) thread(c *gin.Context) {
	other, ok := idParam(c, "userID")
	if !ok {
		return
	}
	msgs, err := g.app.Messaging.Thread(c.Request.Context(), currentUser(c).ID, other)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (g *Gateway) listNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUser(c).ID
	list, err := g.app.Notifier.List(ctx, userID, c.Query("unread") == "true", intQuery(c, "limit", 50))
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	unread, err := g.app.Notifier.UnreadCount(ctx, userID)
	if err != nil {
		g.logger.Warn("Failed to count unread notifications", zap.Uint("user_id", userID), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list, "unread": unread})
}

func (g *Gateway) markNotificationRead(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := g.app.Notifier.MarkRead(c.Request.Context(), currentUser(c).ID, id); err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (g *Gateway) markAllNotificationsRead(c *gin.Context) {
	n, err := g.app.Notifier.MarkAllRead(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": n})
}

func (g *Gateway) chatSocket(c *gin.Context) {
	if err := g.app.Chat.Serve(c.Writer, c.Request, currentUser(c), c.Param("room")); err != nil {
		if c.Writer.Written() {
			g.logger.Debug("Websocket upgrade failed", zap.Error(err))
			return
		}
		respondError(c, g.logger, err)
	}
}

func (g *Gateway) chatHistory(c *gin.Context) {
	msgs, err := g.app.Chat.History(c.Request.Context(), c.Param("room"), intQuery(c, "limit", 50))
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
