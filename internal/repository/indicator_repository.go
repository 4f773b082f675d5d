package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fawe-tz/mne-api/internal/models"
)

const indicatorColumns = "id, name, indicator_type, target_value, actual_value, description, proof_document, created_at, updated_at"

// IndicatorRepository persists M&E indicators.
type IndicatorRepository struct {
	db *sqlx.DB
}

// NewIndicatorRepository constructs an IndicatorRepository.
func NewIndicatorRepository(db *sqlx.DB) *IndicatorRepository {
	return &IndicatorRepository{db: db}
}

// List returns indicators matching filter ordered by name.
func (r *IndicatorRepository) List(ctx context.Context, filter models.IndicatorFilter) ([]models.Indicator, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("indicator_type = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(escapeLike(filter.Search))+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)))
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	query := fmt.Sprintf("SELECT %s FROM indicators %s ORDER BY name ASC LIMIT %d OFFSET %d", indicatorColumns, where, size, (page-1)*size)
	items := make([]models.Indicator, 0)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list indicators: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM indicators "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count indicators: %w", err)
	}
	return items, total, nil
}

// FindByID returns one indicator. sql.ErrNoRows is returned unwrapped.
func (r *IndicatorRepository) FindByID(ctx context.Context, id string) (*models.Indicator, error) {
	var item models.Indicator
	if err := r.db.GetContext(ctx, &item, "SELECT "+indicatorColumns+" FROM indicators WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find indicator: %w", err)
	}
	return &item, nil
}

// Create inserts a new indicator.
func (r *IndicatorRepository) Create(ctx context.Context, item *models.Indicator) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	const query = `INSERT INTO indicators (id, name, indicator_type, target_value, actual_value, description, proof_document, created_at, updated_at)
VALUES (:id, :name, :indicator_type, :target_value, :actual_value, :description, :proof_document, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create indicator: %w", err)
	}
	return nil
}

// Update overwrites the editable indicator fields.
func (r *IndicatorRepository) Update(ctx context.Context, item *models.Indicator) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE indicators SET name = :name, indicator_type = :indicator_type, target_value = :target_value,
actual_value = :actual_value, description = :description, proof_document = :proof_document, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, item)
	if err != nil {
		return fmt.Errorf("update indicator: %w", err)
	}
	return requireAffected(res)
}

// Delete removes an indicator.
func (r *IndicatorRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM indicators WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete indicator: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
