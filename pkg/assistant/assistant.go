// Package assistant relays farmer questions to a text generation backend and turns
// disease descriptions into stored reports.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/evansochadeka/BenFarm/pkg/apperr"
	"github.com/evansochadeka/BenFarm/pkg/auth"
	"github.com/evansochadeka/BenFarm/pkg/config"
	"github.com/evansochadeka/BenFarm/pkg/metrics"
	"github.com/evansochadeka/BenFarm/pkg/models"
	"github.com/evansochadeka/BenFarm/pkg/notify"
)

const (
	assistantName  = "BenFarm"
	maxMessageLen  = 4000
	maxDescription = 2000
)

var humanKeywords = []string{"human", "person", "speak", "call", "contact", "expert", "real person"}

type Service struct {
	client  TextGenerationClient
	db      *gorm.DB
	sender  notify.Sender
	metrics *metrics.Metrics
	cfg     config.AssistantConfig
	logger  *zap.Logger
}

func NewService(client TextGenerationClient, db *gorm.DB, sender notify.Sender, m *metrics.Metrics, cfg config.AssistantConfig, logger *zap.Logger) *Service {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 800
	}
	return &Service{client: client, db: db, sender: sender, metrics: m, cfg: cfg, logger: logger.Named("assistant")}
}

type ChatReply struct {
	Response  string `json:"response"`
	Assistant string `json:"assistant"`
	Fallback  bool   `json:"fallback"`
	Contact   string `json:"contact,omitempty"`
}

// WantsHuman reports whether a message asks for a person rather than the assistant.
func WantsHuman(message string) bool {
	lower := strings.ToLower(message)
	for _, k := range humanKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Chat answers a farmer's question. Backend failures produce a fallback reply, not an error.
func (s *Service) Chat(ctx context.Context, message string) (*ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.Invalid("no message provided")
	}
	if len(message) > maxMessageLen {
		return nil, apperr.Invalid("message exceeds %d characters", maxMessageLen)
	}

	text, err := s.client.Generate(ctx, Prompt{
		Message:     message,
		Preamble:    chatPreamble(s.cfg.HumanContact),
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	s.metrics.ObserveExternal("cohere", err)
	if err != nil {
		s.logger.Warn("Assistant backend unavailable", zap.Error(err))
		return &ChatReply{
			Response:  fmt.Sprintf("%s is having trouble right now. Please contact our agronomist directly at %s.", assistantName, s.cfg.HumanContact),
			Assistant: assistantName,
			Fallback:  true,
			Contact:   s.cfg.HumanContact,
		}, nil
	}

	reply := &ChatReply{Response: text, Assistant: assistantName}
	if WantsHuman(message) {
		reply.Response += humanContactBlock(s.cfg.HumanContact)
		reply.Contact = s.cfg.HumanContact
	}
	return reply, nil
}

// Detect analyses a described plant problem and stores the result as a report. A
// backend failure still stores a report, carrying the default analysis.
func (s *Service) Detect(ctx context.Context, farmer *models.User, description, imageRef string) (*models.DiseaseReport, *Analysis, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, nil, apperr.Invalid("plant description is required")
	}
	if len(description) > maxDescription {
		return nil, nil, apperr.Invalid("description exceeds %d characters", maxDescription)
	}

	text, err := s.client.Generate(ctx, Prompt{
		Message:     detectionPrompt(description, imageRef),
		Preamble:    detectionPreamble,
		Temperature: 0.2,
		MaxTokens:   2000,
	})
	s.metrics.ObserveExternal("cohere", err)

	var analysis Analysis
	if err != nil {
		s.logger.Warn("Disease analysis failed", zap.Uint("farmer_id", farmer.ID), zap.Error(err))
		analysis = DefaultAnalysis()
		if errors.Is(err, ErrNotConfigured) {
			analysis.AdditionalAdvice = "AI analysis is not configured. Please contact an extension officer."
		} else {
			analysis.AdditionalAdvice = "Error: " + err.Error()
		}
	} else {
		analysis = ParseAnalysis(text)
	}

	report := &models.DiseaseReport{
		FarmerID:                farmer.ID,
		ImageRef:                imageRef,
		Description:             description,
		PlantName:               analysis.PlantName,
		DiseaseName:             analysis.DiseaseName,
		ScientificName:          analysis.DiseaseScientificName,
		ConfidenceScore:         ConfidenceScore(analysis.Confidence),
		Symptoms:                strings.Join(analysis.Symptoms, "\n"),
		Treatment:               strings.Join(analysis.Medications, "\n"),
		Medications:             analysis.Medications,
		PreventionTips:          strings.Join(analysis.PreventionTips, "\n"),
		EnvironmentalConditions: analysis.EnvironmentalConditions,
		AdditionalAdvice:        analysis.AdditionalAdvice,
		Location:                farmer.Location,
		Status:                  models.ReportStatusAnalyzed,
	}
	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to save disease report: %w", err)
	}
	return report, &analysis, nil
}

type ReportFilter struct {
	Status  models.ReportStatus
	Page    int
	PerPage int
}

// ListReports returns every report to officers and admins, and a farmer's own
// reports to anyone else.
func (s *Service) ListReports(ctx context.Context, viewer *models.User, f ReportFilter) ([]models.DiseaseReport, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage <= 0 || f.PerPage > 100 {
		f.PerPage = 20
	}
	q := s.db.WithContext(ctx).Model(&models.DiseaseReport{})
	if !auth.Can(viewer.Role, auth.CapViewReports) {
		q = q.Where("farmer_id = ?", viewer.ID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count reports: %w", err)
	}
	var reports []models.DiseaseReport
	err := q.Order("created_at DESC").Order("id DESC").
		Offset((f.Page - 1) * f.PerPage).Limit(f.PerPage).
		Find(&reports).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, total, nil
}

func (s *Service) GetReport(ctx context.Context, viewer *models.User, id uint) (*models.DiseaseReport, error) {
	var r models.DiseaseReport
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("report")
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	if r.FarmerID != viewer.ID && !auth.Can(viewer.Role, auth.CapViewReports) {
		return nil, apperr.ErrForbidden
	}
	return &r, nil
}

// Review marks a report reviewed and tells the farmer.
func (s *Service) Review(ctx context.Context, reviewer *models.User, id uint, notes string) (*models.DiseaseReport, error) {
	r, err := s.GetReport(ctx, reviewer, id)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Model(r).Updates(map[string]interface{}{
		"status":       models.ReportStatusReviewed,
		"reviewed_by":  reviewer.ID,
		"review_notes": strings.TrimSpace(notes),
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to review report: %w", err)
	}
	if s.sender != nil {
		s.sender.Send(notify.Message{
			UserID: r.FarmerID,
			Title:  "Disease report reviewed",
			Body:   fmt.Sprintf("An expert reviewed your %s report.", strings.ToLower(r.PlantName)),
			Type:   notify.TypeSystem,
			Link:   fmt.Sprintf("/disease/reports/%d", r.ID),
		})
	}
	return s.GetReport(ctx, reviewer, id)
}

func (s *Service) CountReports(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.DiseaseReport{}).Count(&n).Error
	return n, err
}

func (s *Service) DeleteReport(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.DiseaseReport{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete report: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("report")
	}
	s.logger.Info("Disease report deleted", zap.Uint("report_id", id))
	return nil
}
