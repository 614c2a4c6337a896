package deliveries

import "time"

// Status is the lifecycle state of a single delivery stop execution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Valid reports whether the status is a known one.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInTransit, StatusDelivered, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the delivery is resolved. Both delivered and
// failed count as resolved for route-completion purposes.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

// CanTransition reports whether a driver may move the delivery from s to
// target. States are never revisited once left.
func (s Status) CanTransition(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusInTransit
	case StatusInTransit:
		return target == StatusDelivered || target == StatusFailed
	default:
		return false
	}
}

// Delivery is the per-stop execution record generated when a rutero starts.
type Delivery struct {
	ID            int64      `json:"id" db:"id"`
	RuteroID      int64      `json:"rutero_id" db:"rutero_id"`
	StopID        int64      `json:"stop_id" db:"stop_id"`
	OrderID       *int64     `json:"order_id,omitempty" db:"order_id"`
	Sequence      int        `json:"sequence" db:"sequence"`
	Status        Status     `json:"status" db:"status"`
	ETAStart      *time.Time `json:"eta_start,omitempty" db:"eta_start"`
	ETAEnd        *time.Time `json:"eta_end,omitempty" db:"eta_end"`
	ItemCount     int        `json:"item_count" db:"item_count"`
	EvidenceRef   *string    `json:"evidence_ref,omitempty" db:"evidence_ref"`
	FailureReason *string    `json:"failure_reason,omitempty" db:"failure_reason"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// MarkRequest carries the driver's status change payload.
type MarkRequest struct {
	Status      Status  `json:"status" validate:"required"`
	EvidenceRef *string `json:"evidence_ref,omitempty"`
	ReasonCode  *string `json:"reason_code,omitempty"`
}
