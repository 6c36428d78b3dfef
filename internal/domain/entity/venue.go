package entity

import "time"

// Tipos de local.
const (
	VenueTypeRestaurant = "restaurant"
	VenueTypeCafe       = "cafe"
	VenueTypeBar        = "bar"
)

// Venue representa un local físico; es la frontera de tenencia del sistema.
type Venue struct {
	ID        string
	Name      string
	Type      string // restaurant, cafe, bar
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
