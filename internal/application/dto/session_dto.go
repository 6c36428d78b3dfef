package dto

import "time"

// LoginRequest entrada para login por PIN en un local.
type LoginRequest struct {
	VenueID string `json:"venue_id" validate:"required,uuid"`
	PIN     string `json:"pin" validate:"required,numeric,min=4,max=8"`
}

// SessionResponse representación persistible de la sesión en el terminal.
// Nunca incluye el PIN. VenueID nulo = scope "todos los locales" (solo owner/manager).
type SessionResponse struct {
	StaffID string  `json:"staff_id"`
	Name    string  `json:"name"`
	Role    string  `json:"role"`
	VenueID *string `json:"venue_id"`
}

// LoginResponse salida con token JWT, sesión y ruta de aterrizaje.
type LoginResponse struct {
	Token        string          `json:"token"`
	Session      SessionResponse `json:"session"`
	DefaultRoute string          `json:"default_route"`
	ExpiresAt    time.Time       `json:"expires_at"` // tope absoluto del token
}

// MeResponse sesión actual con datos de actividad.
type MeResponse struct {
	Session        SessionResponse `json:"session"`
	HomeVenueID    string          `json:"home_venue_id"`
	IssuedAt       time.Time       `json:"issued_at"`
	LastActivityAt time.Time       `json:"last_activity_at"`
	DefaultRoute   string          `json:"default_route"`
}

// SelectScopeRequest selección de scope: venue_id nulo pide "todos los locales".
type SelectScopeRequest struct {
	VenueID *string `json:"venue_id"`
}
