package decisionrecord

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/iris/pkg/database"
	"github.com/Ramsey-B/iris/pkg/metrics"
	"github.com/Ramsey-B/iris/pkg/models"
	"github.com/Ramsey-B/iris/pkg/tracing"
)

const (
	table = "decision_records"

	DefaultListLimit = 100
	MaxListLimit     = 1000
)

var columns = []string{"id", "entity_name", "entity_type", "input", "decision", "match_id", "final_score", "forced", "reasoning", "outcome", "candidates", "created_at"}

type row struct {
	ID         string                                   `db:"id"`
	EntityName string                                   `db:"entity_name"`
	EntityType string                                   `db:"entity_type"`
	Input      database.JSONB[models.EntityDescriptor]  `db:"input"`
	Decision   string                                   `db:"decision"`
	MatchID    sql.NullString                           `db:"match_id"`
	FinalScore sql.NullFloat64                          `db:"final_score"`
	Forced     bool                                     `db:"forced"`
	Reasoning  string                                   `db:"reasoning"`
	Outcome    database.JSONB[models.Decision]          `db:"outcome"`
	Candidates database.JSONB[[]models.ScoredCandidate] `db:"candidates"`
	CreatedAt  time.Time                                `db:"created_at"`
}

func (r row) record() models.DecisionRecord {
	return models.DecisionRecord{
		ID:         r.ID,
		Input:      r.Input.GetValue(),
		Decision:   r.Outcome.GetValue(),
		Candidates: r.Candidates.GetValue(),
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

// Repository handles decision record persistence. Records are append-only.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new decision record repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Append stores a decision record
func (r *Repository) Append(ctx context.Context, record models.DecisionRecord) error {
	ctx, span := tracing.StartSpan(ctx, "decisionrecord.Repository.Append")
	defer span.End()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if record.Candidates == nil {
		record.Candidates = []models.ScoredCandidate{}
	}

	var matchID sql.NullString
	if record.Decision.MatchID != "" {
		matchID = sql.NullString{String: record.Decision.MatchID, Valid: true}
	}
	var finalScore sql.NullFloat64
	if record.Decision.Score != nil {
		finalScore = sql.NullFloat64{Float64: record.Decision.Score.FinalScore, Valid: true}
	}

	ib := r.db.Flavor().NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(
		record.ID,
		record.Input.Name,
		record.Input.Type,
		database.NewJSONB(record.Input),
		string(record.Decision.Kind),
		matchID,
		finalScore,
		record.Decision.Forced,
		record.Decision.Reasoning,
		database.NewJSONB(record.Decision),
		database.NewJSONB(record.Candidates),
		record.CreatedAt.UTC(),
	)

	start := time.Now()
	query, args := ib.Build()
	_, err := r.db.ExecContext(ctx, query, args...)
	metrics.DatabaseQueryDuration.WithLabelValues("decision_records.append").Observe(time.Since(start).Seconds())
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"record_id": record.ID}).Error("Failed to append decision record")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to append decision record")
	}

	return nil
}

// List returns the most recent records, newest first
func (r *Repository) List(ctx context.Context, limit int) ([]models.DecisionRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "decisionrecord.Repository.List")
	defer span.End()

	if limit < 1 || limit > MaxListLimit {
		limit = DefaultListLimit
	}

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.OrderBy("created_at DESC", "id DESC")
	sb.Limit(limit)

	start := time.Now()
	query, args := sb.Build()
	var rows []row
	err := r.db.SelectContext(ctx, &rows, query, args...)
	metrics.DatabaseQueryDuration.WithLabelValues("decision_records.list").Observe(time.Since(start).Seconds())
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list decision records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list decision records")
	}

	records := make([]models.DecisionRecord, len(rows))
	for i, rw := range rows {
		records[i] = rw.record()
	}
	return records, nil
}

// Stats counts decisions by kind over the most recent window records
func (r *Repository) Stats(ctx context.Context, window int) (models.DecisionStats, error) {
	ctx, span := tracing.StartSpan(ctx, "decisionrecord.Repository.Stats")
	defer span.End()

	if window < 1 {
		window = MaxListLimit
	}

	flavor := r.db.Flavor()
	recent := flavor.NewSelectBuilder()
	recent.Select("decision")
	recent.From(table)
	recent.OrderBy("created_at DESC", "id DESC")
	recent.Limit(window)

	sb := flavor.NewSelectBuilder()
	sb.Select("decision", sb.As("COUNT(*)", "total"))
	sb.From(sb.BuilderAs(recent, "recent"))
	sb.GroupBy("decision")

	query, args := sb.Build()
	var counts []struct {
		Decision string `db:"decision"`
		Total    int    `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to compute decision stats")
		return models.DecisionStats{}, httperror.NewHTTPError(http.StatusInternalServerError, "failed to compute decision stats")
	}

	var merge, create, ambiguous int
	for _, c := range counts {
		switch models.DecisionKind(c.Decision) {
		case models.DecisionMerge:
			merge = c.Total
		case models.DecisionCreate:
			create = c.Total
		case models.DecisionAmbiguous:
			ambiguous = c.Total
		}
	}
	return models.NewDecisionStats(merge, create, ambiguous), nil
}
