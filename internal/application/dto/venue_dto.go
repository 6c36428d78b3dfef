package dto

// VenueResponse salida de un local.
type VenueResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsActive bool   `json:"is_active"`
}

// VenueListResponse listado de locales visibles.
type VenueListResponse struct {
	Items []VenueResponse `json:"items"`
	Scope string          `json:"scope"`
}
