package zones

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates a missing zone.
var ErrNotFound = errors.New("zone not found")

// Repository is the persistence contract for zones.
type Repository interface {
	List(ctx context.Context) ([]Zone, error)
	Get(ctx context.Context, id int64) (*Zone, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed zone repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const zoneColumns = `id, code, name, polygon, created_at, updated_at`

func (r *repository) List(ctx context.Context) ([]Zone, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+zoneColumns+` FROM zones ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Zone
	for rows.Next() {
		var z Zone
		if err := rows.Scan(&z.ID, &z.Code, &z.Name, &z.Polygon, &z.CreatedAt, &z.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, z)
	}
	return result, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Zone, error) {
	var z Zone
	err := r.pool.QueryRow(ctx, `SELECT `+zoneColumns+` FROM zones WHERE id = $1`, id).Scan(
		&z.ID, &z.Code, &z.Name, &z.Polygon, &z.CreatedAt, &z.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &z, nil
}
