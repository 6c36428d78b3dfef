// seed_staff genera el script SQL con locales y personal a partir de un archivo YAML.
// Los PIN se guardan solo como hash bcrypt.
//
// Uso: go run ./cmd/seed_staff [ruta/seed.yaml]
// Por defecto busca seed.yaml en el directorio actual.
// Escribe: migrations/002_seed_staff.sql
//
// Formato:
//
//	venues:
//	  - id: 11111111-1111-1111-1111-111111111111   # opcional
//	    name: Centro
//	    type: restaurant
//	    staff:
//	      - name: Ana
//	        role: waiter
//	        pin: "1234"
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/comandas-api/internal/domain/entity"
)

type seedFile struct {
	Venues []seedVenue `mapstructure:"venues"`
}

type seedVenue struct {
	ID       string      `mapstructure:"id"`
	Name     string      `mapstructure:"name"`
	Type     string      `mapstructure:"type"`
	Inactive bool        `mapstructure:"inactive"`
	Staff    []seedStaff `mapstructure:"staff"`
}

type seedStaff struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
	Role string `mapstructure:"role"`
	PIN  string `mapstructure:"pin"`
}

func main() {
	seedPath := "seed.yaml"
	if len(os.Args) > 1 {
		seedPath = os.Args[1]
	}
	v := viper.New()
	v.SetConfigFile(seedPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Leer seed: %v\n", err)
		os.Exit(1)
	}
	var seed seedFile
	if err := v.Unmarshal(&seed); err != nil {
		fmt.Fprintf(os.Stderr, "Decodificar seed: %v\n", err)
		os.Exit(1)
	}
	if err := validate(seed); err != nil {
		fmt.Fprintf(os.Stderr, "Seed inválido: %v\n", err)
		os.Exit(1)
	}

	moduleRoot := findModuleRoot()
	outPath := filepath.Join(moduleRoot, "migrations", "002_seed_staff.sql")
	out, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Crear archivo: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	out.WriteString("-- Locales y personal (PIN como hash bcrypt)\n")
	out.WriteString("-- Generado por cmd/seed_staff\n\n")

	var staffCount int
	for _, venue := range seed.Venues {
		venueID := nonEmptyID(venue.ID)
		venueType := venue.Type
		if venueType == "" {
			venueType = entity.VenueTypeRestaurant
		}
		fmt.Fprintf(out, "INSERT INTO venues (id, name, type, is_active) VALUES ('%s', '%s', '%s', %t)\n",
			venueID, escapeSQL(venue.Name), escapeSQL(venueType), !venue.Inactive)
		out.WriteString("ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, type = EXCLUDED.type, is_active = EXCLUDED.is_active;\n")

		for _, st := range venue.Staff {
			hash, err := bcrypt.GenerateFromPassword([]byte(st.PIN), bcrypt.DefaultCost)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Hash PIN de %s: %v\n", st.Name, err)
				os.Exit(1)
			}
			fmt.Fprintf(out, "INSERT INTO staff (id, venue_id, name, role, pin_hash) VALUES ('%s', '%s', '%s', '%s', '%s')\n",
				nonEmptyID(st.ID), venueID, escapeSQL(st.Name), st.Role, hash)
			out.WriteString("ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role, pin_hash = EXCLUDED.pin_hash;\n")
			staffCount++
		}
		out.WriteString("\n")
	}

	fmt.Printf("Generado %s: %d locales, %d miembros del personal\n", outPath, len(seed.Venues), staffCount)
}

// validate roles del conjunto cerrado, PIN numérico de 4 a 8 dígitos y sin PIN repetido
// dentro de un mismo local (el login identifica al empleado solo por el PIN).
func validate(seed seedFile) error {
	if len(seed.Venues) == 0 {
		return fmt.Errorf("sin locales")
	}
	for _, venue := range seed.Venues {
		if strings.TrimSpace(venue.Name) == "" {
			return fmt.Errorf("local sin nombre")
		}
		if venue.ID != "" {
			if _, err := uuid.Parse(venue.ID); err != nil {
				return fmt.Errorf("local %s: id %q no es UUID", venue.Name, venue.ID)
			}
		}
		pins := make(map[string]string)
		for _, st := range venue.Staff {
			if _, err := entity.ParseRole(st.Role); err != nil {
				return fmt.Errorf("local %s, %s: %w", venue.Name, st.Name, err)
			}
			if !validPIN(st.PIN) {
				return fmt.Errorf("local %s, %s: el PIN debe tener de 4 a 8 dígitos", venue.Name, st.Name)
			}
			if other, dup := pins[st.PIN]; dup {
				return fmt.Errorf("local %s: %s y %s comparten PIN", venue.Name, other, st.Name)
			}
			pins[st.PIN] = st.Name
		}
	}
	return nil
}

func validPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 8 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func nonEmptyID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func findModuleRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
