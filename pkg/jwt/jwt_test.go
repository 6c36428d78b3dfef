package jwt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgjwt "github.com/jhoicas/comandas-api/pkg/jwt"
)

const testSecret = "test-secret-key-for-unit-tests"

var testSubject = pkgjwt.Subject{
	SessionID: "00000000-0000-0000-0000-0000000000aa",
	StaffID:   "00000000-0000-0000-0000-000000000001",
	VenueID:   "00000000-0000-0000-0000-000000000002",
	Role:      "kitchen",
}

func TestGenerateAndParse_ConSesion(t *testing.T) {
	tok, err := pkgjwt.Generate(testSecret, testSubject, "comandas-test", 60)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	claims, err := pkgjwt.Parse(testSecret, tok)
	require.NoError(t, err)
	assert.Equal(t, testSubject.SessionID, claims.SessionID)
	assert.Equal(t, testSubject.StaffID, claims.StaffID)
	assert.Equal(t, testSubject.VenueID, claims.VenueID)
	assert.Equal(t, "kitchen", claims.Role)
}

func TestParse_TokenExpirado_RetornaError(t *testing.T) {
	tok, err := pkgjwt.Generate(testSecret, testSubject, "comandas-test", -1)
	require.NoError(t, err)

	_, err = pkgjwt.Parse(testSecret, tok)
	assert.Error(t, err, "token expirado debe retornar error")
}

func TestParse_SecretIncorrecto_RetornaError(t *testing.T) {
	tok, err := pkgjwt.Generate(testSecret, testSubject, "comandas-test", 60)
	require.NoError(t, err)

	_, err = pkgjwt.Parse("otro-secret-completamente-distinto", tok)
	assert.Error(t, err, "secret incorrecto debe invalidar el token")
}

func TestParse_SinSesion_RetornaError(t *testing.T) {
	sub := testSubject
	sub.SessionID = ""
	tok, err := pkgjwt.Generate(testSecret, sub, "comandas-test", 60)
	require.NoError(t, err)

	_, err = pkgjwt.Parse(testSecret, tok)
	assert.Error(t, err)
}

func TestGenerate_SecretVacio(t *testing.T) {
	_, err := pkgjwt.Generate("", testSubject, "comandas-test", 60)
	assert.Error(t, err)
}
