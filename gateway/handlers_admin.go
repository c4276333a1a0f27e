package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/evansochadeka/BenFarm/pkg/auth"
)

func (g *Gateway) adminUsers(c *gin.Context) {
	users, total, err := g.app.Auth.ListUsers(c.Request.Context(), auth.UserFilter{
		Role:    c.Query("role"),
		Search:  c.Query("search"),
		Page:    intQuery(c, "page", 1),
		PerPage: intQuery(c, "per_page", 20),
	})
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "total": total})
}

func (g *Gateway) adminToggleActive(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	user, err := g.app.Auth.ToggleActive(c.Request.Context(), id)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	g.logger.Info("User active flag changed",
		zap.Uint("user_id", user.ID),
		zap.Bool("is_active", user.IsActive),
		zap.Uint("admin_id", currentUser(c).ID))
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (g *Gateway) adminVerify(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	user, err := g.app.Auth.Verify(c.Request.Context(), id)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (g *Gateway) adminOrders(c *gin.Context) {
	list, total, err := g.app.Orders.ListAll(c.Request.Context(), c.Query("status"), intQuery(c, "page", 1), intQuery(c, "per_page", 20))
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list, "total": total})
}

func (g *Gateway) adminStats(c *gin.Context) {
	c.JSON(http.StatusOK, g.app.Stats(c.Request.Context()))
}

func (g *Gateway) pinPost(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	post, err := g.app.Community.TogglePin(c.Request.Context(), id)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

func (g *Gateway) closePost(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	post, err := g.app.Community.ToggleClose(c.Request.Context(), id)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

func (g *Gateway) deletePost(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := g.app.Community.DeletePost(c.Request.Context(), id); err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (g *Gateway) adminMessages(c *gin.Context) {
	list, total, err := g.app.Messaging.ListAll(c.Request.Context(), intQuery(c, "page", 1), intQuery(c, "per_page", 50))
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": list, "total": total})
}

func (g *Gateway) adminDeleteMessage(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := g.app.Messaging.Delete(c.Request.Context(), id); err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (g *Gateway) adminDeleteConversation(c *gin.Context) {
	a, ok := idParam(c, "userA")
	if !ok {
		return
	}
	b, ok := idParam(c, "userB")
	if !ok {
		return
	}
	n, err := g.app.Messaging.DeleteConversation(c.Request.Context(), a, b)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": n})
}

func (g *Gateway) adminDeleteDiseaseReport(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := g.app.Assistant.DeleteReport(c.Request.Context(), id); err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
