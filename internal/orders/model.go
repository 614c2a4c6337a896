package orders

import "time"

// OrderStatus is the lifecycle state of a sales order.
type OrderStatus string

const (
	StatusPendiente     OrderStatus = "PENDIENTE"
	StatusAprobado      OrderStatus = "APROBADO"
	StatusEnPreparacion OrderStatus = "EN_PREPARACION"
	StatusFacturado     OrderStatus = "FACTURADO"
	StatusEnRuta        OrderStatus = "EN_RUTA"
	StatusEntregado     OrderStatus = "ENTREGADO"
	StatusAnulado       OrderStatus = "ANULADO"
	StatusRechazado     OrderStatus = "RECHAZADO"
)

// mainChain is the forward path an order walks through the warehouse flow.
// ANULADO and RECHAZADO are side exits reachable from any non-terminal state.
var mainChain = []OrderStatus{
	StatusPendiente,
	StatusAprobado,
	StatusEnPreparacion,
	StatusFacturado,
	StatusEnRuta,
	StatusEntregado,
}

// Valid reports whether the status is a known one.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPendiente, StatusAprobado, StatusEnPreparacion, StatusFacturado,
		StatusEnRuta, StatusEntregado, StatusAnulado, StatusRechazado:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status freezes the order.
func (s OrderStatus) Terminal() bool {
	return s == StatusEntregado || s == StatusAnulado || s == StatusRechazado
}

// Next returns the following status on the main chain.
func (s OrderStatus) Next() (OrderStatus, bool) {
	for i, st := range mainChain {
		if st == s && i+1 < len(mainChain) {
			return mainChain[i+1], true
		}
	}
	return "", false
}

// CanTransition reports whether the order may move from s to target.
// Forward moves advance exactly one step; skipping is never allowed.
func (s OrderStatus) CanTransition(target OrderStatus) bool {
	if s.Terminal() {
		return false
	}
	if target == StatusAnulado || target == StatusRechazado {
		return true
	}
	next, ok := s.Next()
	return ok && target == next
}

// PaymentCondition is how the client settles the order.
type PaymentCondition string

const (
	PaymentContado PaymentCondition = "CONTADO"
	PaymentCredito PaymentCondition = "CREDITO"
)

// Valid reports whether the payment condition is known.
func (p PaymentCondition) Valid() bool {
	return p == PaymentContado || p == PaymentCredito
}

// Order is a sales order placed by (or on behalf of) a client.
type Order struct {
	ID               int64            `json:"id" db:"id"`
	DocNumber        string           `json:"doc_number" db:"doc_number"`
	ClientID         int64            `json:"client_id" db:"client_id"`
	Status           OrderStatus      `json:"status" db:"status"`
	PaymentCondition PaymentCondition `json:"payment_condition" db:"payment_condition"`
	Subtotal         float64          `json:"subtotal" db:"subtotal"`
	DiscountTotal    float64          `json:"discount_total" db:"discount_total"`
	TaxTotal         float64          `json:"tax_total" db:"tax_total"`
	Total            float64          `json:"total" db:"total"`
	Notes            *string          `json:"notes,omitempty" db:"notes"`
	CreatedBy        int64            `json:"created_by" db:"created_by"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
	Lines            []OrderLine      `json:"lines,omitempty" db:"-"`
}

// OrderLine is a product position within an order.
type OrderLine struct {
	ID           int64     `json:"id" db:"id"`
	OrderID      int64     `json:"order_id" db:"order_id"`
	ProductID    int64     `json:"product_id" db:"product_id"`
	Description  *string   `json:"description,omitempty" db:"description"`
	Quantity     float64   `json:"quantity" db:"quantity"`
	UnitPrice    float64   `json:"unit_price" db:"unit_price"`
	FinalPrice   float64   `json:"final_price" db:"final_price"`
	LineSubtotal float64   `json:"line_subtotal" db:"line_subtotal"`
	LineOrder    int       `json:"line_order" db:"line_order"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// StatusChange is one entry of an order's audit trail.
type StatusChange struct {
	ID        int64       `json:"id" db:"id"`
	OrderID   int64       `json:"order_id" db:"order_id"`
	Status    OrderStatus `json:"status" db:"status"`
	ActorID   int64       `json:"actor_id" db:"actor_id"`
	ActorRole string      `json:"actor_role" db:"actor_role"`
	ChangedAt time.Time   `json:"changed_at" db:"changed_at"`
}

// OrderWithDetails includes joined data for listings.
type OrderWithDetails struct {
	Order
	ClientName string `json:"client_name" db:"client_name"`
	LineCount  int    `json:"line_count" db:"line_count"`
}
