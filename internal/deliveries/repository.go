package deliveries

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates a missing delivery record.
var ErrNotFound = errors.New("delivery not found")

// Repository is the persistence contract for deliveries.
type Repository interface {
	Get(ctx context.Context, id int64) (*Delivery, error)
	ListByRoute(ctx context.Context, ruteroID int64) ([]Delivery, error)
	Mark(ctx context.Context, id int64, status Status, evidence, reason *string, deliveredAt *time.Time) error
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db dbtx
}

// NewRepository constructs a PostgreSQL-backed delivery repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const deliveryColumns = `id, rutero_id, stop_id, order_id, sequence, status,
       eta_start, eta_end, item_count, evidence_ref, failure_reason,
       delivered_at, created_at, updated_at`

func scanDelivery(row pgx.Row) (*Delivery, error) {
	var d Delivery
	err := row.Scan(
		&d.ID, &d.RuteroID, &d.StopID, &d.OrderID, &d.Sequence, &d.Status,
		&d.ETAStart, &d.ETAEnd, &d.ItemCount, &d.EvidenceRef, &d.FailureReason,
		&d.DeliveredAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Delivery, error) {
	return scanDelivery(r.db.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id))
}

// ListByRoute enumerates a route's deliveries in visit order.
func (r *repository) ListByRoute(ctx context.Context, ruteroID int64) ([]Delivery, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+deliveryColumns+`
		FROM deliveries
		WHERE rutero_id = $1
		ORDER BY sequence, id
	`, ruteroID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(
			&d.ID, &d.RuteroID, &d.StopID, &d.OrderID, &d.Sequence, &d.Status,
			&d.ETAStart, &d.ETAEnd, &d.ItemCount, &d.EvidenceRef, &d.FailureReason,
			&d.DeliveredAt, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (r *repository) Mark(ctx context.Context, id int64, status Status, evidence, reason *string, deliveredAt *time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE deliveries
		SET status = $1,
		    evidence_ref = COALESCE($2, evidence_ref),
		    failure_reason = COALESCE($3, failure_reason),
		    delivered_at = COALESCE($4, delivered_at),
		    updated_at = NOW()
		WHERE id = $5
	`, status, evidence, reason, deliveredAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
