package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/evansochadeka/BenFarm/pkg/directory"
	"github.com/evansochadeka/BenFarm/pkg/models"
	"github.com/evansochadeka/BenFarm/pkg/pos"
	"github.com/evansochadeka/BenFarm/pkg/reviews"
)

func (g *Gateway) findAgrovets(c *gin.Context) {
	list, err := g.app.Directory.Agrovets(c.Request.Context(), currentUser(c), directory.Filter{
		Search:   c.Query("search"),
		Location: c.Query("location"),
		Limit:    intQuery(c, "limit", 50),
	})
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agrovets": list})
}

func (g *Gateway) agrovetReviews(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	summary, err := g.app.Reviews.ForAgrovet(c.Request.Context(), id)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (g *Gateway) createReview(c *gin.Context) {
	var in reviews.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	review, err := g.app.Reviews.Create(c.Request.Context(), currentUser(c), in)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"review": review})
}

func (g *Gateway) respondToReview(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Response string `json:"response"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	review, err := g.app.Reviews.Respond(c.Request.Context(), currentUser(c), id, req.Response)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"review": review})
}

func (g *Gateway) logCommunication(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in pos.CommunicationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	comm, err := g.app.POS.LogCommunication(c.Request.Context(), currentUser(c).ID, id, in)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"communication": comm})
}

func (g *Gateway) followUps(c *gin.Context) {
	list, err := g.app.POS.FollowUps(c.Request.Context(), currentUser(c).ID, time.Now())
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"follow_ups": list})
}

func (g *Gateway) completeFollowUp(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	comm, err := g.app.POS.CompleteFollowUp(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"communication": comm})
}

func (g *Gateway) adminReviews(c *gin.Context) {
	list, total, err := g.app.Reviews.List(c.Request.Context(), reviews.Filter{
		Status:  c.Query("status"),
		Page:    intQuery(c, "page", 1),
		PerPage: intQuery(c, "per_page", 20),
	})
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": list, "total": total})
}

func (g *Gateway) setReviewStatus(status models.ReviewStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		review, err := g.app.Reviews.SetStatus(c.Request.Context(), id, status)
		if err != nil {
			respondError(c, g.logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"review": review})
	}
}

func (g *Gateway) featureReview(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	review, err := g.app.Reviews.ToggleFeatured(c.Request.Context(), id)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "is_featured": review.IsFeatured})
}

func (g *Gateway) deleteReview(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := g.app.Reviews.Delete(c.Request.Context(), id); err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
