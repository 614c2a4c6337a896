package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/distriflow/distriflow/internal/platform/db"
)

var (
	ErrNotFound  = errors.New("order not found")
	ErrDuplicate = errors.New("order document number already exists")
)

// Repository is the persistence contract for orders.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Order, error)
	GetByDocNumber(ctx context.Context, docNumber string) (*Order, error)
	List(ctx context.Context, req ListOrdersRequest) ([]OrderWithDetails, int, error)
	Create(ctx context.Context, order Order) (int64, error)
	InsertLine(ctx context.Context, line OrderLine) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status OrderStatus, actorID int64, actorRole string) error
	StatusHistory(ctx context.Context, orderID int64) ([]StatusChange, error)
	GenerateNumber(ctx context.Context, date time.Time) (string, error)
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

// NewRepository constructs a PostgreSQL-backed order repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const orderColumns = `id, doc_number, client_id, status, payment_condition,
       subtotal, discount_total, tax_total, total, notes, created_by,
       created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.DocNumber, &o.ClientID, &o.Status, &o.PaymentCondition,
		&o.Subtotal, &o.DiscountTotal, &o.TaxTotal, &o.Total, &o.Notes,
		&o.CreatedBy, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	lines, err := r.lines(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return o, nil
}

func (r *repository) GetByDocNumber(ctx context.Context, docNumber string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE doc_number = $1`, docNumber))
	if err != nil {
		return nil, err
	}
	lines, err := r.lines(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return o, nil
}

func (r *repository) lines(ctx context.Context, orderID int64) ([]OrderLine, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, description, quantity, unit_price,
		       final_price, line_subtotal, line_order, created_at
		FROM order_lines
		WHERE order_id = $1
		ORDER BY line_order, id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(
			&l.ID, &l.OrderID, &l.ProductID, &l.Description, &l.Quantity,
			&l.UnitPrice, &l.FinalPrice, &l.LineSubtotal, &l.LineOrder, &l.CreatedAt,
		); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) List(ctx context.Context, req ListOrdersRequest) ([]OrderWithDetails, int, error) {
	conditions := []string{"1=1"}
	var args []any
	argPos := 1

	if req.ClientID != nil {
		conditions = append(conditions, fmt.Sprintf("o.client_id = $%d", argPos))
		args = append(args, *req.ClientID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("o.status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("o.created_at >= $%d", argPos))
		args = append(args, *req.DateFrom)
		argPos++
	}
	if req.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("o.created_at < $%d", argPos))
		args = append(args, *req.DateTo)
		argPos++
	}
	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM orders o WHERE ` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT o.id, o.doc_number, o.client_id, o.status, o.payment_condition,
		       o.subtotal, o.discount_total, o.tax_total, o.total, o.notes,
		       o.created_by, o.created_at, o.updated_at,
		       c.name AS client_name,
		       COUNT(ol.id) AS line_count
		FROM orders o
		INNER JOIN clients c ON c.id = o.client_id
		LEFT JOIN order_lines ol ON ol.order_id = o.id
		WHERE ` + where + `
		GROUP BY o.id, c.name
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $` + fmt.Sprint(argPos) + ` OFFSET $` + fmt.Sprint(argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []OrderWithDetails
	for rows.Next() {
		var o OrderWithDetails
		if err := rows.Scan(
			&o.ID, &o.DocNumber, &o.ClientID, &o.Status, &o.PaymentCondition,
			&o.Subtotal, &o.DiscountTotal, &o.TaxTotal, &o.Total, &o.Notes,
			&o.CreatedBy, &o.CreatedAt, &o.UpdatedAt,
			&o.ClientName, &o.LineCount,
		); err != nil {
			return nil, 0, err
		}
		result = append(result, o)
	}
	return result, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, order Order) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO orders (doc_number, client_id, status, payment_condition,
		                    subtotal, discount_total, tax_total, total, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, order.DocNumber, order.ClientID, order.Status, order.PaymentCondition,
		order.Subtotal, order.DiscountTotal, order.TaxTotal, order.Total,
		order.Notes, order.CreatedBy,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) InsertLine(ctx context.Context, line OrderLine) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO order_lines (order_id, product_id, description, quantity,
		                         unit_price, final_price, line_subtotal, line_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, line.OrderID, line.ProductID, line.Description, line.Quantity,
		line.UnitPrice, line.FinalPrice, line.LineSubtotal, line.LineOrder,
	).Scan(&id)
	return id, err
}

// UpdateStatus flips the order status and appends the audit trail entry.
// Both statements share the caller's transaction when invoked inside WithTx.
func (r *repository) UpdateStatus(ctx context.Context, id int64, status OrderStatus, actorID int64, actorRole string) error {
	tag, err := r.db.Exec(ctx, `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO order_status_changes (order_id, status, actor_id, actor_role)
		VALUES ($1, $2, $3, $4)
	`, id, status, actorID, actorRole)
	return err
}

func (r *repository) StatusHistory(ctx context.Context, orderID int64) ([]StatusChange, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, status, actor_id, actor_role, changed_at
		FROM order_status_changes
		WHERE order_id = $1
		ORDER BY changed_at, id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []StatusChange
	for rows.Next() {
		var c StatusChange
		if err := rows.Scan(&c.ID, &c.OrderID, &c.Status, &c.ActorID, &c.ActorRole, &c.ChangedAt); err != nil {
			return nil, err
		}
		history = append(history, c)
	}
	return history, rows.Err()
}

// GenerateNumber reserves the next document number for the month via an
// atomic sequence upsert, so concurrent creates never collide.
func (r *repository) GenerateNumber(ctx context.Context, date time.Time) (string, error) {
	period := date.Format("200601")
	var seq int
	err := r.db.QueryRow(ctx, `
		INSERT INTO document_sequences (doc_type, period, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq
	`, "ORD", period).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%s-%04d", period, seq), nil
}
