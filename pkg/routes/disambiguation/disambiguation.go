package disambiguation

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/iris/pkg/decision"
	"github.com/Ramsey-B/iris/pkg/disambiguation"
	"github.com/Ramsey-B/iris/pkg/models"
	"github.com/Ramsey-B/iris/pkg/routes/apierror"
	"github.com/Ramsey-B/iris/pkg/scoring"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Service is the part of the disambiguation service these routes expose
type Service interface {
	Decide(ctx context.Context, entity models.EntityDescriptor, force bool, topK int) (*models.Decision, error)
	MatchCandidates(ctx context.Context, entity models.EntityDescriptor, topK int) ([]models.CandidateMatch, error)
	History(ctx context.Context, limit int) ([]models.DecisionRecord, error)
	Stats(ctx context.Context) (models.DecisionStats, error)
	RebuildIndex(ctx context.Context) (int, error)
	Reconfigure(ctx context.Context, settings disambiguation.Settings) (disambiguation.Settings, error)
	Settings() disambiguation.Settings
	IndexStatus() (loaded bool, generation uint64)
}

// Handler serves the disambiguation routes
type Handler struct {
	svc    Service
	logger ectologger.Logger
}

func NewHandler(svc Service, logger ectologger.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register registers disambiguation routes
func Register(g *echo.Group, h *Handler) {
	g.POST("/decide", h.Decide)
	g.POST("/candidates", h.MatchCandidates)
	g.GET("/history", h.History)
	g.GET("/stats", h.Stats)
	g.POST("/index/rebuild", h.RebuildIndex)
	g.GET("/settings", h.GetSettings)
	g.PUT("/settings", h.UpdateSettings)
}

type DecideRequest struct {
	Entity        models.EntityDescriptor `json:"entity"`
	ForceDecision bool                    `json:"force_decision"`
	TopK          int                     `json:"top_k" validate:"min=0,max=100"`
}

type DecideResponse struct {
	Result  models.Decision `json:"result"`
	Message string          `json:"message"`
}

type MatchCandidatesRequest struct {
	Entity models.EntityDescriptor `json:"entity"`
	TopK   int                     `json:"top_k" validate:"min=0,max=100"`
}

type MatchCandidatesResponse struct {
	Candidates []models.CandidateMatch `json:"candidates"`
	TotalCount int                     `json:"total_count"`
	Message    string                  `json:"message"`
}

type HistoryResponse struct {
	Records    []models.DecisionRecord `json:"records"`
	TotalCount int                     `json:"total_count"`
}

type IndexStatus struct {
	Loaded     bool   `json:"loaded"`
	Generation uint64 `json:"generation"`
}

type StatsResponse struct {
	Decisions models.DecisionStats `json:"decisions"`
	Index     IndexStatus          `json:"index"`
}

type RebuildResponse struct {
	Entities   int    `json:"entities"`
	Generation uint64 `json:"generation"`
	Message    string `json:"message"`
}

// SettingsPayload is the wire form of the engine settings. Durations are strings
// such as "5s".
type SettingsPayload struct {
	Weights       scoring.Weights               `json:"weights"`
	Adjustment    scoring.TypeAdjustment        `json:"type_adjustment"`
	Thresholds    decision.Thresholds           `json:"thresholds"`
	ForcePolicy   decision.ForcePolicy          `json:"force_policy"`
	Normalization scoring.NormalizationStrategy `json:"normalization"`
	RerankerLow   float64                       `json:"reranker_low"`
	RerankerHigh  float64                       `json:"reranker_high"`
	DefaultTopK   int                           `json:"default_top_k"`
	MinSimilarity float64                       `json:"min_similarity"`
	SignalTimeout string                        `json:"signal_timeout"`
	Concurrency   int                           `json:"concurrency"`
}

func settingsPayload(s disambiguation.Settings) SettingsPayload {
	return SettingsPayload{
		Weights:       s.Weights,
		Adjustment:    s.Adjustment,
		Thresholds:    s.Thresholds,
		ForcePolicy:   s.ForcePolicy,
		Normalization: s.Normalization,
		RerankerLow:   s.RerankerLow,
		RerankerHigh:  s.RerankerHigh,
		DefaultTopK:   s.DefaultTopK,
		MinSimilarity: s.MinSimilarity,
		SignalTimeout: s.SignalTimeout.String(),
		Concurrency:   s.Concurrency,
	}
}

func (p SettingsPayload) settings() (disambiguation.Settings, error) {
	timeout, err := time.ParseDuration(p.SignalTimeout)
	if err != nil {
		return disambiguation.Settings{}, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid signal_timeout %q", p.SignalTimeout)
	}
	return disambiguation.Settings{
		Weights:       p.Weights,
		Adjustment:    p.Adjustment,
		Thresholds:    p.Thresholds,
		ForcePolicy:   p.ForcePolicy,
		Normalization: p.Normalization,
		RerankerLow:   p.RerankerLow,
		RerankerHigh:  p.RerankerHigh,
		DefaultTopK:   p.DefaultTopK,
		MinSimilarity: p.MinSimilarity,
		SignalTimeout: timeout,
		Concurrency:   p.Concurrency,
	}, nil
}

func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// Decide classifies an entity as merge, create or ambiguous
func (h *Handler) Decide(c echo.Context) error {
	ctx := c.Request().Context()

	var req DecideRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	result, err := h.svc.Decide(ctx, req.Entity, req.ForceDecision, req.TopK)
	if err != nil {
		return apierror.From(c, err)
	}

	return c.JSON(http.StatusOK, DecideResponse{Result: *result, Message: "decision complete"})
}

// MatchCandidates returns the ranked candidates for an entity without deciding
func (h *Handler) MatchCandidates(c echo.Context) error {
	ctx := c.Request().Context()

	var req MatchCandidatesRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	candidates, err := h.svc.MatchCandidates(ctx, req.Entity, req.TopK)
	if err != nil {
		return apierror.From(c, err)
	}

	return c.JSON(http.StatusOK, MatchCandidatesResponse{
		Candidates: candidates,
		TotalCount: len(candidates),
		Message:    "candidate matching complete",
	})
}

// History lists recent decisions
func (h *Handler) History(c echo.Context) error {
	ctx := c.Request().Context()

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid limit %q", raw)
		}
		if n == 0 {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be at least 1")
		}
		limit = n
	}

	records, err := h.svc.History(ctx, limit)
	if err != nil {
		return apierror.From(c, err)
	}
	if records == nil {
		records = []models.DecisionRecord{}
	}

	return c.JSON(http.StatusOK, HistoryResponse{Records: records, TotalCount: len(records)})
}

// Stats summarizes recent decisions and the index state
func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := h.svc.Stats(ctx)
	if err != nil {
		return apierror.From(c, err)
	}

	loaded, generation := h.svc.IndexStatus()
	return c.JSON(http.StatusOK, StatsResponse{
		Decisions: stats,
		Index:     IndexStatus{Loaded: loaded, Generation: generation},
	})
}

// RebuildIndex rebuilds the candidate index from the entity store
func (h *Handler) RebuildIndex(c echo.Context) error {
	ctx := c.Request().Context()

	size, err := h.svc.RebuildIndex(ctx)
	if err != nil {
		return apierror.From(c, err)
	}

	_, generation := h.svc.IndexStatus()
	h.logger.WithContext(ctx).WithFields(map[string]any{
		"entities":   size,
		"generation": generation,
	}).Info("Index rebuilt via api")

	return c.JSON(http.StatusOK, RebuildResponse{Entities: size, Generation: generation, Message: "index rebuilt"})
}

// GetSettings returns the active engine settings
func (h *Handler) GetSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, settingsPayload(h.svc.Settings()))
}

// UpdateSettings applies a full or partial settings update. Omitted fields keep their
// current values.
func (h *Handler) UpdateSettings(c echo.Context) error {
	ctx := c.Request().Context()

	payload := settingsPayload(h.svc.Settings())
	if err := c.Bind(&payload); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	settings, err := payload.settings()
	if err != nil {
		return err
	}

	applied, err := h.svc.Reconfigure(ctx, settings)
	if err != nil {
		return apierror.From(c, err)
	}

	return c.JSON(http.StatusOK, settingsPayload(applied))
}
