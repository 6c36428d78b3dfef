package entity

import "time"

// VenueScope conjunto de locales visibles para una sesión: un único local o todos.
// El valor cero no es válido; usar SingleVenue o AllVenues.
type VenueScope struct {
	all     bool
	venueID string
}

// SingleVenue construye un scope fijado a un local.
func SingleVenue(venueID string) VenueScope {
	return VenueScope{venueID: venueID}
}

// AllVenues construye el pseudo-scope "todos los locales activos".
func AllVenues() VenueScope {
	return VenueScope{all: true}
}

// IsAll informa si el scope es AllVenues.
func (s VenueScope) IsAll() bool { return s.all }

// VenueID devuelve el local del scope; ok=false si es AllVenues o el valor cero.
func (s VenueScope) VenueID() (string, bool) {
	if s.all || s.venueID == "" {
		return "", false
	}
	return s.venueID, true
}

// IsZero true si el scope no fue inicializado.
func (s VenueScope) IsZero() bool { return !s.all && s.venueID == "" }

// Contains informa si venueID está dentro del scope. AllVenues contiene cualquier local;
// la restricción a locales activos la aplica quien consulta el almacén.
func (s VenueScope) Contains(venueID string) bool {
	if venueID == "" {
		return false
	}
	return s.all || s.venueID == venueID
}

func (s VenueScope) String() string {
	if s.all {
		return "all"
	}
	return "venue:" + s.venueID
}

// Session sesión de un miembro del personal ligada a un local y un rol.
// Invariante: un rol no privilegiado siempre tiene Scope = SingleVenue(VenueID).
type Session struct {
	ID             string
	StaffID        string
	StaffName      string
	VenueID        string // local donde se autenticó
	Role           Role
	Scope          VenueScope
	IssuedAt       time.Time
	LastActivityAt time.Time
}

// IsValid true sii now - LastActivityAt < timeout. Función pura del tiempo.
func (s Session) IsValid(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivityAt) < timeout
}
