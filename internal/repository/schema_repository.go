package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/govstack-ph/be-sglgb-assessments/internal/domain"
	"github.com/govstack-ph/be-sglgb-assessments/internal/platform/database"
	"github.com/govstack-ph/be-sglgb-assessments/internal/platform/errors"
)

// SchemaRepository reads indicator requirement schemas. Schemas are
// authored by form design and immutable per indicator version; only the
// latest version of each indicator is served.
type SchemaRepository struct {
	db *database.DB
}

// NewSchemaRepository creates a new SchemaRepository.
func NewSchemaRepository(db *database.DB) *SchemaRepository {
	return &SchemaRepository{db: db}
}

// GetByIndicatorID returns the latest schema version for an indicator.
func (r *SchemaRepository) GetByIndicatorID(ctx context.Context, indicatorID string) (*domain.IndicatorSchema, error) {
	query := `
		SELECT indicator_id, area_id, version, validation_rule, fields, created_at
		FROM indicator_schemas
		WHERE indicator_id = $1
		ORDER BY version DESC
		LIMIT 1
	`

	schema, err := r.scanSchema(r.db.QueryRow(ctx, query, indicatorID))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("indicator_schema", indicatorID)
	}
	return schema, err
}

// ListByArea returns the latest schema version of every indicator in a
// governance area, ordered by indicator id.
func (r *SchemaRepository) ListByArea(ctx context.Context, areaID int) ([]*domain.IndicatorSchema, error) {
	query := `
		SELECT DISTINCT ON (indicator_id)
		       indicator_id, area_id, version, validation_rule, fields, created_at
		FROM indicator_schemas
		WHERE area_id = $1
		ORDER BY indicator_id, version DESC
	`

	rows, err := r.db.Query(ctx, query, areaID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list indicator schemas")
	}
	defer rows.Close()

	schemas := make([]*domain.IndicatorSchema, 0)
	for rows.Next() {
		schema, err := r.scanSchema(rows)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, schema)
	}

	return schemas, nil
}

type schemaScanner interface {
	Scan(dest ...any) error
}

func (r *SchemaRepository) scanSchema(row schemaScanner) (*domain.IndicatorSchema, error) {
	s := &domain.IndicatorSchema{}
	var fieldsJSON []byte

	err := row.Scan(
		&s.IndicatorID,
		&s.AreaID,
		&s.Version,
		&s.Rule,
		&fieldsJSON,
		&s.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan indicator schema")
	}

	if err := json.Unmarshal(fieldsJSON, &s.Fields); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal schema fields")
	}

	return s, nil
}
