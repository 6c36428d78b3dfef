package entity

import (
	"fmt"
	"time"
)

// Role rol operativo de un miembro del personal. Conjunto cerrado.
type Role string

// Roles válidos para Staff.
const (
	RoleOwner     Role = "owner"
	RoleManager   Role = "manager"
	RoleCashier   Role = "cashier"
	RoleWaiter    Role = "waiter"
	RoleKitchen   Role = "kitchen"
	RoleReception Role = "reception"
)

// Roles devuelve todos los roles en orden de nivel de acceso descendente.
func Roles() []Role {
	return []Role{RoleOwner, RoleManager, RoleCashier, RoleWaiter, RoleKitchen, RoleReception}
}

// Valid informa si r pertenece al conjunto cerrado de roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleCashier, RoleWaiter, RoleKitchen, RoleReception:
		return true
	}
	return false
}

// Privileged true para owner y manager, los únicos que pueden ver todos los locales.
func (r Role) Privileged() bool {
	return r == RoleOwner || r == RoleManager
}

// ParseRole convierte un string a Role validando el conjunto cerrado.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("rol desconocido %q", s)
	}
	return r, nil
}

// Staff miembro del personal de un local. El PIN nunca se guarda en claro.
type Staff struct {
	ID        string
	VenueID   string
	Name      string
	Role      Role
	PinHash   string // bcrypt
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
