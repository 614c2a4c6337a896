package ruteros

import "time"

// RouteStatus is the lifecycle state of a rutero.
type RouteStatus string

const (
	StatusPublicado  RouteStatus = "publicado"
	StatusEnCurso    RouteStatus = "en_curso"
	StatusCompletado RouteStatus = "completado"
)

// Valid reports whether the status is a known one.
func (s RouteStatus) Valid() bool {
	switch s {
	case StatusPublicado, StatusEnCurso, StatusCompletado:
		return true
	default:
		return false
	}
}

// Terminal reports whether the route is frozen. A completed route never
// changes again.
func (s RouteStatus) Terminal() bool {
	return s == StatusCompletado
}

// Frequency of a recurring route.
type Frequency string

const (
	FrequencySemanal   Frequency = "semanal"
	FrequencyQuincenal Frequency = "quincenal"
	FrequencyMensual   Frequency = "mensual"
)

// Valid reports whether the frequency is a known one.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencySemanal, FrequencyQuincenal, FrequencyMensual:
		return true
	default:
		return false
	}
}

// Route is a published delivery route with its ordered stops.
type Route struct {
	ID          int64       `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	ZoneID      *int64      `json:"zone_id,omitempty" db:"zone_id"`
	DriverID    *int64      `json:"driver_id,omitempty" db:"driver_id"`
	DayOfWeek   int         `json:"day_of_week" db:"day_of_week"`
	Frequency   Frequency   `json:"frequency" db:"frequency"`
	Status      RouteStatus `json:"status" db:"status"`
	Active      bool        `json:"active" db:"active"`
	StartedAt   *time.Time  `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
	Stops       []Stop      `json:"stops,omitempty" db:"-"`
}

// Stop is one client visit within a route. Position is 1-based and unique
// per route.
type Stop struct {
	ID       int64  `json:"id" db:"id"`
	RuteroID int64  `json:"rutero_id" db:"rutero_id"`
	ClientID int64  `json:"client_id" db:"client_id"`
	OrderID  *int64 `json:"order_id,omitempty" db:"order_id"`
	Position int    `json:"position" db:"position"`
}
