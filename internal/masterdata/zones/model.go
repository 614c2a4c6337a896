package zones

import (
	"encoding/json"
	"time"
)

// Zone is a geographic sales territory. Polygon holds the raw GeoJSON ring
// as stored; the API passes it through untouched.
type Zone struct {
	ID        int64           `json:"id" db:"id"`
	Code      string          `json:"code" db:"code"`
	Name      string          `json:"name" db:"name"`
	Polygon   json.RawMessage `json:"polygon,omitempty" db:"polygon"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
