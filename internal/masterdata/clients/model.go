package clients

import "time"

// Client is a reference-data customer record used when building route stops.
type Client struct {
	ID        int64     `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`
	Name      string    `json:"name" db:"name"`
	ZoneID    *int64    `json:"zone_id,omitempty" db:"zone_id"`
	VendorID  *int64    `json:"vendor_id,omitempty" db:"vendor_id"`
	Address   *string   `json:"address,omitempty" db:"address"`
	GeoLat    *float64  `json:"geo_lat,omitempty" db:"geo_lat"`
	GeoLng    *float64  `json:"geo_lng,omitempty" db:"geo_lng"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ListFilters narrows a client listing.
type ListFilters struct {
	ZoneID   *int64
	VendorID *int64
	Search   string
	Limit    int
	Offset   int
}
