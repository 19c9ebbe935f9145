package strategy

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/internal/database"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/plan"
)

// StrategyRepository defines the interface for strategy persistence
type StrategyRepository interface {
	Create(ctx context.Context, siteID string, req models.CreateStrategyRequest) (*models.Strategy, error)
	GetByID(ctx context.Context, siteID string, id string) (*models.Strategy, error)
	List(ctx context.Context, siteID string, page, pageSize int) ([]models.Strategy, int, error)
	Update(ctx context.Context, siteID string, id string, req models.UpdateStrategyRequest) (*models.Strategy, error)
	Replace(ctx context.Context, siteID string, strategy models.Strategy) (*models.Strategy, error)
	Delete(ctx context.Context, siteID string, id string) error
}

// Repository implements StrategyRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new strategy repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const tableName = "strategies"

// strategyRow is the storage shape; steps live in a jsonb column.
type strategyRow struct {
	ID          string                        `db:"id"`
	SiteID      string                        `db:"site_id"`
	Name        string                        `db:"name"`
	Description *string                       `db:"description"`
	RecordType  *string                       `db:"record_type"`
	RootStepID  *string                       `db:"root_step_id"`
	Steps       database.JSONB[[]models.Step] `db:"steps"`
	IsSaved     bool                          `db:"is_saved"`
	ExternalID  *string                       `db:"external_id"`
	CreatedAt   time.Time                     `db:"created_at"`
	UpdatedAt   time.Time                     `db:"updated_at"`
	DeletedAt   *time.Time                    `db:"deleted_at"`
}

func (r strategyRow) toModel() models.Strategy {
	steps := r.Steps.GetValue()
	if steps == nil {
		steps = []models.Step{}
	}
	return models.Strategy{
		ID:          r.ID,
		SiteID:      r.SiteID,
		Name:        r.Name,
		Description: r.Description,
		RecordType:  r.RecordType,
		RootStepID:  r.RootStepID,
		Steps:       steps,
		IsSaved:     r.IsSaved,
		ExternalID:  r.ExternalID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		DeletedAt:   r.DeletedAt,
	}
}

var columns = []string{"id", "site_id", "name", "description", "record_type", "root_step_id", "steps", "is_saved", "external_id", "created_at", "updated_at", "deleted_at"}

// Create creates a new strategy
func (r *Repository) Create(ctx context.Context, siteID string, req models.CreateStrategyRequest) (*models.Strategy, error) {
	ctx, span := tracing.StartSpan(ctx, "StrategyRepository.Create")
	defer span.End()

	now := time.Now()
	id := uuid.New().String()

	steps := req.Steps
	if steps == nil {
		steps = []models.Step{}
	}

	sb := database.NewInsertBuilder()
	sb.InsertInto(tableName)
	sb.Cols("id", "site_id", "name", "description", "record_type", "steps", "is_saved", "created_at", "updated_at")
	sb.Values(id, siteID, req.Name, req.Description, req.RecordType, database.JSONB[[]models.Step]{Data: steps}, false, now, now)

	query, args := sb.Build()

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create strategy")
		return nil, fmt.Errorf("failed to create strategy: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":      id,
		"site_id": siteID,
		"name":    req.Name,
	}).Info("created strategy")

	return r.GetByID(ctx, siteID, id)
}

// GetByID gets a strategy by ID
func (r *Repository) GetByID(ctx context.Context, siteID string, id string) (*models.Strategy, error) {
	ctx, span := tracing.StartSpan(ctx, "StrategyRepository.GetByID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("site_id", siteID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	var row strategyRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get strategy by ID")
		return nil, fmt.Errorf("failed to get strategy: %w", err)
	}

	strategy := row.toModel()
	return &strategy, nil
}

// List lists strategies for a site with pagination
func (r *Repository) List(ctx context.Context, siteID string, page, pageSize int) ([]models.Strategy, int, error) {
	ctx, span := tracing.StartSpan(ctx, "StrategyRepository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	countSb := database.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From(tableName)
	countSb.Where(
		countSb.Equal("site_id", siteID),
		countSb.IsNull("deleted_at"),
	)
	countQuery, countArgs := countSb.Build()

	var totalCount int
	err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to count strategies")
		return nil, 0, fmt.Errorf("failed to count strategies: %w", err)
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("site_id", siteID),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("updated_at DESC")
	sb.Limit(pageSize)
	sb.Offset(offset)

	query, args := sb.Build()

	var rows []strategyRow
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list strategies")
		return nil, 0, fmt.Errorf("failed to list strategies: %w", err)
	}

	items := make([]models.Strategy, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toModel())
	}

	return items, totalCount, nil
}

// Update applies a partial update. Nil request fields are left untouched. A
// plan update replaces the step list and re-derives record type and root.
func (r *Repository) Update(ctx context.Context, siteID string, id string, req models.UpdateStrategyRequest) (*models.Strategy, error) {
	ctx, span := tracing.StartSpan(ctx, "StrategyRepository.Update")
	defer span.End()

	existing, err := r.GetByID(ctx, siteID, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	sb := database.NewUpdateBuilder()
	sb.Update(tableName)
	sb.Set(sb.Assign("updated_at", time.Now()))

	if req.Name != nil {
		sb.Set(sb.Assign("name", *req.Name))
	}
	if req.IsSaved != nil {
		sb.Set(sb.Assign("is_saved", *req.IsSaved))
	}
	if req.ExternalID != nil {
		sb.Set(sb.Assign("external_id", *req.ExternalID))
	}
	if req.Plan != nil {
		steps := plan.Flatten(*req.Plan)
		sb.Set(sb.Assign("steps", database.JSONB[[]models.Step]{Data: steps}))
		if req.Plan.RecordType != "" {
			sb.Set(sb.Assign("record_type", req.Plan.RecordType))
		}
		if req.Plan.Root != nil && req.Plan.Root.ID != "" {
			sb.Set(sb.Assign("root_step_id", req.Plan.Root.ID))
		}
	}

	sb.Where(
		sb.Equal("id", id),
		sb.Equal("site_id", siteID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to update strategy")
		return nil, fmt.Errorf("failed to update strategy: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":            id,
		"site_id":       siteID,
		"rows_affected": rowsAffected,
	}).Info("updated strategy")

	return r.GetByID(ctx, siteID, id)
}

// Replace overwrites the full editable state of a strategy.
func (r *Repository) Replace(ctx context.Context, siteID string, strategy models.Strategy) (*models.Strategy, error) {
	ctx, span := tracing.StartSpan(ctx, "StrategyRepository.Replace")
	defer span.End()

	sb := database.NewUpdateBuilder()
	sb.Update(tableName)
	sb.Set(
		sb.Assign("name", strategy.Name),
		sb.Assign("description", strategy.Description),
		sb.Assign("record_type", strategy.RecordType),
		sb.Assign("root_step_id", strategy.RootStepID),
		sb.Assign("steps", database.JSONB[[]models.Step]{Data: strategy.Steps}),
		sb.Assign("is_saved", strategy.IsSaved),
		sb.Assign("external_id", strategy.ExternalID),
		sb.Assign("updated_at", time.Now()),
	)
	sb.Where(
		sb.Equal("id", strategy.ID),
		sb.Equal("site_id", siteID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to replace strategy")
		return nil, fmt.Errorf("failed to replace strategy: %w", err)
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, siteID, strategy.ID)
}

// Delete soft deletes a strategy
func (r *Repository) Delete(ctx context.Context, siteID string, id string) error {
	ctx, span := tracing.StartSpan(ctx, "StrategyRepository.Delete")
	defer span.End()

	sb := database.NewUpdateBuilder()
	sb.Update(tableName)
	sb.Set(sb.Assign("deleted_at", time.Now()))
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("site_id", siteID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to delete strategy")
		return fmt.Errorf("failed to delete strategy: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":            id,
		"site_id":       siteID,
		"rows_affected": rowsAffected,
	}).Info("deleted strategy")

	return nil
}
