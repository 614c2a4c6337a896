package ruteros

import (
	"github.com/distriflow/distriflow/internal/deliveries"
	"github.com/distriflow/distriflow/internal/shared"
)

// CreateRouteRequest is the payload for creating a rutero.
type CreateRouteRequest struct {
	Name      string          `json:"name" validate:"required,min=2,max=120"`
	ZoneID    *int64          `json:"zone_id,omitempty"`
	DriverID  *int64          `json:"driver_id,omitempty"`
	DayOfWeek int             `json:"day_of_week" validate:"required,min=1,max=7"`
	Frequency Frequency       `json:"frequency" validate:"required"`
	Stops     []CreateStopReq `json:"stops" validate:"dive"`
}

// CreateStopReq describes one stop in a create or replace payload. Position
// is optional; missing positions are assigned in payload order.
type CreateStopReq struct {
	ClientID int64  `json:"client_id" validate:"required,gt=0"`
	OrderID  *int64 `json:"order_id,omitempty"`
	Position int    `json:"position,omitempty" validate:"omitempty,gt=0"`
}

// ReplaceStopsRequest swaps a route's full stop list.
type ReplaceStopsRequest struct {
	Stops []CreateStopReq `json:"stops" validate:"required,min=1,dive"`
}

// ListRoutesRequest carries listing filters.
type ListRoutesRequest struct {
	ZoneID   *int64
	DriverID *int64
	Status   *RouteStatus
	Limit    int
	Offset   int
}

// StartRouteResponse returns the started route together with the deliveries
// generated for it.
type StartRouteResponse struct {
	Route      Route                 `json:"route"`
	Deliveries []deliveries.Delivery `json:"deliveries"`
}

// ListRoutesResponse is the paginated listing envelope.
type ListRoutesResponse struct {
	Routes     []Route           `json:"routes"`
	Pagination shared.Pagination `json:"pagination"`
}
