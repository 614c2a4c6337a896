package ruteros

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/distriflow/distriflow/internal/platform/db"
)

var (
	// ErrNotFound indicates a missing rutero.
	ErrNotFound = errors.New("rutero not found")
	// ErrStatusConflict indicates the route left the expected status between
	// the caller's read and the update.
	ErrStatusConflict = errors.New("rutero status changed concurrently")
)

// Repository is the persistence contract for ruteros.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Route, error)
	List(ctx context.Context, req ListRoutesRequest) ([]Route, int, error)
	ListActive(ctx context.Context) ([]Route, error)
	Create(ctx context.Context, route Route) (int64, error)
	ReplaceStops(ctx context.Context, ruteroID int64, stops []Stop) error
	UpdateStatus(ctx context.Context, id int64, from, to RouteStatus, startedAt, completedAt *time.Time) error
	SetActive(ctx context.Context, id int64, active bool) error
	GenerateDeliveries(ctx context.Context, route *Route) error
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed rutero repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const routeColumns = `id, name, zone_id, driver_id, day_of_week, frequency,
       status, active, started_at, completed_at, created_at, updated_at`

func scanRoute(row pgx.Row) (*Route, error) {
	var rt Route
	err := row.Scan(
		&rt.ID, &rt.Name, &rt.ZoneID, &rt.DriverID, &rt.DayOfWeek, &rt.Frequency,
		&rt.Status, &rt.Active, &rt.StartedAt, &rt.CompletedAt, &rt.CreatedAt, &rt.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rt, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Route, error) {
	rt, err := scanRoute(r.db.QueryRow(ctx, `SELECT `+routeColumns+` FROM ruteros WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	stops, err := r.stops(ctx, rt.ID)
	if err != nil {
		return nil, err
	}
	rt.Stops = stops
	return rt, nil
}

func (r *repository) stops(ctx context.Context, ruteroID int64) ([]Stop, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, rutero_id, client_id, order_id, position
		FROM rutero_stops
		WHERE rutero_id = $1
		ORDER BY position, id
	`, ruteroID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stops []Stop
	for rows.Next() {
		var s Stop
		if err := rows.Scan(&s.ID, &s.RuteroID, &s.ClientID, &s.OrderID, &s.Position); err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

func (r *repository) List(ctx context.Context, req ListRoutesRequest) ([]Route, int, error) {
	conditions := []string{"1=1"}
	var args []any
	argPos := 1

	if req.ZoneID != nil {
		conditions = append(conditions, fmt.Sprintf("zone_id = $%d", argPos))
		args = append(args, *req.ZoneID)
		argPos++
	}
	if req.DriverID != nil {
		conditions = append(conditions, fmt.Sprintf("driver_id = $%d", argPos))
		args = append(args, *req.DriverID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM ruteros WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + routeColumns + ` FROM ruteros WHERE ` + where +
		` ORDER BY created_at DESC, id DESC LIMIT $` + fmt.Sprint(argPos) + ` OFFSET $` + fmt.Sprint(argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	routes, err := collectRoutes(rows)
	if err != nil {
		return nil, 0, err
	}
	return routes, total, nil
}

// ListActive returns every en_curso route, stops included. Used by the
// reconciliation sweep.
func (r *repository) ListActive(ctx context.Context) ([]Route, error) {
	rows, err := r.db.Query(ctx, `SELECT `+routeColumns+` FROM ruteros WHERE status = $1 ORDER BY id`, StatusEnCurso)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	routes, err := collectRoutes(rows)
	if err != nil {
		return nil, err
	}
	for i := range routes {
		stops, err := r.stops(ctx, routes[i].ID)
		if err != nil {
			return nil, err
		}
		routes[i].Stops = stops
	}
	return routes, nil
}

func collectRoutes(rows pgx.Rows) ([]Route, error) {
	var routes []Route
	for rows.Next() {
		var rt Route
		if err := rows.Scan(
			&rt.ID, &rt.Name, &rt.ZoneID, &rt.DriverID, &rt.DayOfWeek, &rt.Frequency,
			&rt.Status, &rt.Active, &rt.StartedAt, &rt.CompletedAt, &rt.CreatedAt, &rt.UpdatedAt,
		); err != nil {
			return nil, err
		}
		routes = append(routes, rt)
	}
	return routes, rows.Err()
}

func (r *repository) Create(ctx context.Context, route Route) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO ruteros (name, zone_id, driver_id, day_of_week, frequency, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, route.Name, route.ZoneID, route.DriverID, route.DayOfWeek, route.Frequency, route.Status).Scan(&id)
	return id, err
}

// ReplaceStops swaps the full stop list. Caller is responsible for position
// normalization; uniqueness is enforced by the table constraint.
func (r *repository) ReplaceStops(ctx context.Context, ruteroID int64, stops []Stop) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM rutero_stops WHERE rutero_id = $1`, ruteroID); err != nil {
		return err
	}
	for _, s := range stops {
		_, err := r.db.Exec(ctx, `
			INSERT INTO rutero_stops (rutero_id, client_id, order_id, position)
			VALUES ($1, $2, $3, $4)
		`, ruteroID, s.ClientID, s.OrderID, s.Position)
		if err != nil {
			return err
		}
	}
	return nil
}

// UpdateStatus flips the route status, guarded on the expected current
// status so concurrent transitions cannot both win.
func (r *repository) UpdateStatus(ctx context.Context, id int64, from, to RouteStatus, startedAt, completedAt *time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE ruteros
		SET status = $1,
		    started_at = COALESCE($2, started_at),
		    completed_at = COALESCE($3, completed_at),
		    updated_at = NOW()
		WHERE id = $4 AND status = $5
	`, to, startedAt, completedAt, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE ruteros SET active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GenerateDeliveries inserts one pending delivery per stop, in stop order.
// Runs inside the Start transaction so a failed insert rolls back the
// status flip too.
func (r *repository) GenerateDeliveries(ctx context.Context, route *Route) error {
	for i, stop := range route.Stops {
		_, err := r.db.Exec(ctx, `
			INSERT INTO deliveries (rutero_id, stop_id, order_id, sequence, status)
			VALUES ($1, $2, $3, $4, 'pending')
		`, route.ID, stop.ID, stop.OrderID, i+1)
		if err != nil {
			return fmt.Errorf("generate delivery for stop %d: %w", stop.ID, err)
		}
	}
	return nil
}
