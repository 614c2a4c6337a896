package clients

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates a missing client.
var ErrNotFound = errors.New("client not found")

// Repository is the persistence contract for clients.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Client, int, error)
	Get(ctx context.Context, id int64) (*Client, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed client repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const clientColumns = `id, code, name, zone_id, vendor_id, address, geo_lat,
       geo_lng, active, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Client, int, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE active = TRUE`
	countQuery := `SELECT COUNT(*) FROM clients WHERE active = TRUE`
	var args []any
	argCount := 0

	appendCond := func(cond string, val any) {
		argCount++
		clause := ` AND ` + cond + `$` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, val)
	}
	if filters.ZoneID != nil {
		appendCond("zone_id = ", *filters.ZoneID)
	}
	if filters.VendorID != nil {
		appendCond("vendor_id = ", *filters.VendorID)
	}
	if filters.Search != "" {
		argCount++
		clause := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY name LIMIT $` + strconv.Itoa(argCount+1) + ` OFFSET $` + strconv.Itoa(argCount+2)
	args = append(args, limit, filters.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(
			&c.ID, &c.Code, &c.Name, &c.ZoneID, &c.VendorID, &c.Address,
			&c.GeoLat, &c.GeoLng, &c.Active, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		result = append(result, c)
	}
	return result, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Client, error) {
	var c Client
	err := r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id).Scan(
		&c.ID, &c.Code, &c.Name, &c.ZoneID, &c.VendorID, &c.Address,
		&c.GeoLat, &c.GeoLng, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
