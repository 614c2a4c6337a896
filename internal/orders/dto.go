package orders

import (
	"time"

	"github.com/distriflow/distriflow/internal/shared"
)

type CreateOrderRequest struct {
	ClientID         int64                `json:"client_id" validate:"required,gt=0"`
	PaymentCondition PaymentCondition     `json:"payment_condition" validate:"required,oneof=CONTADO CREDITO"`
	Notes            *string              `json:"notes,omitempty"`
	Lines            []CreateOrderLineReq `json:"lines" validate:"required,min=1,dive"`
}

type CreateOrderLineReq struct {
	ProductID   int64   `json:"product_id" validate:"required,gt=0"`
	Description *string `json:"description,omitempty"`
	Quantity    float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"required,gte=0"`
	FinalPrice  float64 `json:"final_price" validate:"gte=0"`
	LineOrder   int     `json:"line_order" validate:"gte=0"`
}

type ChangeStatusRequest struct {
	Status OrderStatus `json:"status" validate:"required"`
}

type ListOrdersRequest struct {
	ClientID *int64       `json:"client_id,omitempty"`
	Status   *OrderStatus `json:"status,omitempty"`
	DateFrom *time.Time   `json:"date_from,omitempty"`
	DateTo   *time.Time   `json:"date_to,omitempty"`
	Limit    int          `json:"limit" validate:"gte=0,lte=1000"`
	Offset   int          `json:"offset" validate:"gte=0"`
}

// OrderResponse is the API shape of an order, with display-formatted totals.
type OrderResponse struct {
	Order
	TotalFormatted string         `json:"total_formatted"`
	History        []StatusChange `json:"history,omitempty"`
}

// NewOrderResponse builds the response DTO.
func NewOrderResponse(o Order, history []StatusChange) OrderResponse {
	return OrderResponse{
		Order:          o,
		TotalFormatted: shared.FormatAmount(o.Total),
		History:        history,
	}
}

type ListOrdersResponse struct {
	Orders     []OrderWithDetails `json:"orders"`
	Pagination shared.Pagination  `json:"pagination"`
}
