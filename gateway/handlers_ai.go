package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evansochadeka/BenFarm/pkg/assistant"
	"github.com/evansochadeka/BenFarm/pkg/models"
)

type chatRequest struct {
	Message string `json:"message"`
}

func (g *Gateway) assistantChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	reply, err := g.app.Assistant.Chat(c.Request.Context(), req.Message)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": !reply.Fallback, "reply": reply})
}

type detectRequest struct {
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

func (g *Gateway) detectDisease(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	report, analysis, err := g.app.Assistant.Detect(c.Request.Context(), currentUser(c), req.Description, req.ImageURL)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":  analysis.DiseaseName != assistant.DefaultAnalysis().DiseaseName,
		"report":   report,
		"analysis": analysis,
	})
}

func (g *Gateway) listDiseaseReports(c *gin.Context) {
	reports, total, err := g.app.Assistant.ListReports(c.Request.Context(), currentUser(c), assistant.ReportFilter{
		Status:  models.ReportStatus(c.Query("status")),
		Page:    intQuery(c, "page", 1),
		PerPage: intQuery(c, "per_page", 20),
	})
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "total": total})
}

func (g *Gateway) getDiseaseReport(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	report, err := g.app.Assistant.GetReport(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

type reviewRequest struct {
	Notes string `json:"notes"`
}

func (g *Gateway) reviewDiseaseReport(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	report, err := g.app.Assistant.Review(c.Request.Context(), currentUser(c), id, req.Notes)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

func (g *Gateway) weather(c *gin.Context) {
	location := c.Query("location")
	if location == "" {
		location = currentUser(c).Location
	}
	report := g.app.Weather.Report(c.Request.Context(), location)
	c.JSON(http.StatusOK, gin.H{"success": len(report.Warnings) == 0, "weather": report})
}
