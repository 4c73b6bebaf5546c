package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/stackmotive/stackmotive/internal/domain/entities"
	"github.com/stackmotive/stackmotive/internal/infrastructure/database"
	apperrors "github.com/stackmotive/stackmotive/pkg/errors"
	"github.com/stackmotive/stackmotive/pkg/metrics"
)

const ringsTable = "allocation_rings"

// ringRow is the stored form of a ring. The whole ring lives in document;
// the other columns are copies kept for indexing and filtering.
type ringRow struct {
	ID                uuid.UUID       `db:"id"`
	UserID            uuid.UUID       `db:"user_id"`
	Name              string          `db:"name"`
	PortfolioID       string          `db:"portfolio_id"`
	Currency          string          `db:"currency"`
	PortfolioValue    decimal.Decimal `db:"portfolio_value"`
	RebalancingNeeded bool            `db:"rebalancing_needed"`
	Compliance        string          `db:"compliance"`
	Document          []byte          `db:"document"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

// RingRepository implements the ring repository interface using PostgreSQL
// JSONB documents. Reads go to a replica when one is configured.
type RingRepository struct {
	pool   *database.ReplicaPool
	logger *zap.Logger
	tracer trace.Tracer
}

// NewRingRepository creates a new ring repository
func NewRingRepository(pool *database.ReplicaPool, logger *zap.Logger) *RingRepository {
	return &RingRepository{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("ring-repository"),
	}
}

// Save inserts the ring or replaces the stored document
func (r *RingRepository) Save(ctx context.Context, ring *entities.AllocationRing) error {
	ctx, span := r.tracer.Start(ctx, "ring_repo.save", trace.WithAttributes(
		attribute.String("ring_id", ring.ID.String()),
		attribute.String("user_id", ring.UserID.String()),
	))
	defer span.End()
	start := time.Now()
	defer func() { metrics.RecordDatabaseQuery("upsert", ringsTable, time.Since(start).Seconds()) }()

	document, err := json.Marshal(ring)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal ring: %w", err)
	}

	query := `
		INSERT INTO allocation_rings (
			id, user_id, name, portfolio_id, currency, portfolio_value,
			rebalancing_needed, compliance, document, created_at, updated_at
		) VALUES (
			:id, :user_id, :name, :portfolio_id, :currency, :portfolio_value,
			:rebalancing_needed, :compliance, :document, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			portfolio_id = EXCLUDED.portfolio_id,
			currency = EXCLUDED.currency,
			portfolio_value = EXCLUDED.portfolio_value,
			rebalancing_needed = EXCLUDED.rebalancing_needed,
			compliance = EXCLUDED.compliance,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at`

	row := ringRow{
		ID:                ring.ID,
		UserID:            ring.UserID,
		Name:              ring.Name,
		PortfolioID:       ring.PortfolioID,
		Currency:          string(ring.Currency),
		PortfolioValue:    ring.PortfolioValue,
		RebalancingNeeded: ring.RebalancingNeeded,
		Compliance:        string(ring.ComplianceStatus.Overall),
		Document:          document,
		CreatedAt:         ring.CreatedAt,
		UpdatedAt:         ring.UpdatedAt,
	}

	if _, err := r.pool.Primary().NamedExecContext(ctx, query, row); err != nil {
		span.RecordError(err)
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("ring already exists: %w", err)
		}
		r.logger.Error("Failed to save ring", zap.Error(err), zap.String("ring_id", ring.ID.String()))
		return fmt.Errorf("failed to save ring: %w", err)
	}

	r.logger.Debug("Ring saved", zap.String("ring_id", ring.ID.String()))
	return nil
}

// GetByID retrieves a ring by ID from a replica
func (r *RingRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.AllocationRing, error) {
	ctx, span := r.tracer.Start(ctx, "ring_repo.get", trace.WithAttributes(
		attribute.String("ring_id", id.String()),
	))
	defer span.End()

	return r.get(ctx, span, r.pool.Replica(), id)
}

// GetForUpdate retrieves a ring from the primary so a following Save never
// replaces a newer write that a replica has not seen yet
func (r *RingRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*entities.AllocationRing, error) {
	ctx, span := r.tracer.Start(ctx, "ring_repo.get_for_update", trace.WithAttributes(
		attribute.String("ring_id", id.String()),
	))
	defer span.End()

	return r.get(ctx, span, r.pool.Primary(), id)
}

func (r *RingRepository) get(ctx context.Context, span trace.Span, db *sqlx.DB, id uuid.UUID) (*entities.AllocationRing, error) {
	start := time.Now()
	defer func() { metrics.RecordDatabaseQuery("select", ringsTable, time.Since(start).Seconds()) }()

	var row ringRow
	err := db.GetContext(ctx, &row, `
		SELECT id, user_id, name, portfolio_id, currency, portfolio_value,
		       rebalancing_needed, compliance, document, created_at, updated_at
		FROM allocation_rings
		WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("Ring", id.String())
	}
	if err != nil {
		span.RecordError(err)
		r.logger.Error("Failed to get ring", zap.Error(err), zap.String("ring_id", id.String()))
		return nil, fmt.Errorf("failed to get ring: %w", err)
	}

	return decodeRing(row)
}

// Delete removes a ring
func (r *RingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := r.tracer.Start(ctx, "ring_repo.delete", trace.WithAttributes(
		attribute.String("ring_id", id.String()),
	))
	defer span.End()
	start := time.Now()
	defer func() { metrics.RecordDatabaseQuery("delete", ringsTable, time.Since(start).Seconds()) }()

	result, err := r.pool.Primary().ExecContext(ctx, `DELETE FROM allocation_rings WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		r.logger.Error("Failed to delete ring", zap.Error(err), zap.String("ring_id", id.String()))
		return fmt.Errorf("failed to delete ring: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFoundError("Ring", id.String())
	}
	return nil
}

// ListByUser retrieves a user's rings, oldest first
func (r *RingRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.AllocationRing, error) {
	ctx, span := r.tracer.Start(ctx, "ring_repo.list_by_user", trace.WithAttributes(
		attribute.String("user_id", userID.String()),
	))
	defer span.End()

	return r.list(ctx, span, `
		SELECT id, user_id, name, portfolio_id, currency, portfolio_value,
		       rebalancing_needed, compliance, document, created_at, updated_at
		FROM allocation_rings
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC`, userID)
}

// List retrieves every ring, oldest first
func (r *RingRepository) List(ctx context.Context) ([]*entities.AllocationRing, error) {
	ctx, span := r.tracer.Start(ctx, "ring_repo.list")
	defer span.End()

	return r.list(ctx, span, `
		SELECT id, user_id, name, portfolio_id, currency, portfolio_value,
		       rebalancing_needed, compliance, document, created_at, updated_at
		FROM allocation_rings
		ORDER BY created_at ASC, id ASC`)
}

func (r *RingRepository) list(ctx context.Context, span trace.Span, query string, args ...interface{}) ([]*entities.AllocationRing, error) {
	start := time.Now()
	defer func() { metrics.RecordDatabaseQuery("select", ringsTable, time.Since(start).Seconds()) }()

	var rows []ringRow
	if err := r.pool.Replica().SelectContext(ctx, &rows, query, args...); err != nil {
		span.RecordError(err)
		r.logger.Error("Failed to list rings", zap.Error(err))
		return nil, fmt.Errorf("failed to list rings: %w", err)
	}

	rings := make([]*entities.AllocationRing, 0, len(rows))
	for _, row := range rows {
		ring, err := decodeRing(row)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		rings = append(rings, ring)
	}
	span.SetAttributes(attribute.Int("count", len(rings)))
	return rings, nil
}

func decodeRing(row ringRow) (*entities.AllocationRing, error) {
	var ring entities.AllocationRing
	if err := json.Unmarshal(row.Document, &ring); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ring %s: %w", row.ID, err)
	}
	return &ring, nil
}
