package auth_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/comandas-api/internal/application/auth"
)

func TestPinLimiter_BloqueaTrasMaxIntentos(t *testing.T) {
	l := auth.NewPinLimiter(2, 30*time.Second)
	now := time.Now()

	ok, _ := l.Allow("V1", now)
	require.True(t, ok)
	assert.False(t, l.Failure("V1", now))

	ok, _ = l.Allow("V1", now)
	require.True(t, ok)
	assert.True(t, l.Failure("V1", now), "el segundo fallo activa el bloqueo")

	ok, until := l.Allow("V1", now.Add(time.Second))
	assert.False(t, ok)
	assert.Equal(t, now.Add(30*time.Second), until)

	ok, _ = l.Allow("V1", now.Add(30*time.Second))
	require.True(t, ok)
	assert.False(t, l.Failure("V1", now.Add(30*time.Second)), "bloqueo vencido: contador reiniciado")
}

func TestPinLimiter_AciertoReinicia(t *testing.T) {
	l := auth.NewPinLimiter(2, time.Minute)
	now := time.Now()

	ok, _ := l.Allow("V1", now)
	require.True(t, ok)
	l.Failure("V1", now)

	ok, _ = l.Allow("V1", now)
	require.True(t, ok)
	l.Success("V1")
	assert.Zero(t, l.Tracked())

	ok, _ = l.Allow("V1", now)
	require.True(t, ok)
	assert.False(t, l.Failure("V1", now))
}

func TestPinLimiter_IntentosEnCursoCuentan(t *testing.T) {
	l := auth.NewPinLimiter(2, time.Minute)
	now := time.Now()

	ok, _ := l.Allow("V1", now)
	require.True(t, ok)
	ok, _ = l.Allow("V1", now)
	require.True(t, ok)

	ok, until := l.Allow("V1", now)
	assert.False(t, ok, "dos verificaciones en curso agotan el cupo")
	assert.True(t, until.IsZero())

	l.Release("V1")
	ok, _ = l.Allow("V1", now)
	assert.True(t, ok, "liberar sin fallo devuelve el cupo")
}

func TestPinLimiter_RafagaConcurrente(t *testing.T) {
	l := auth.NewPinLimiter(5, time.Minute)
	now := time.Now()

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow("V1", now); ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(5), admitted.Load())

	for i := 0; i < 5; i++ {
		l.Failure("V1", now)
	}
	ok, until := l.Allow("V1", now)
	assert.False(t, ok)
	assert.Equal(t, now.Add(time.Minute), until)
}

func TestPinLimiter_ReleaseNoDejaEstado(t *testing.T) {
	l := auth.NewPinLimiter(3, time.Minute)
	now := time.Now()
	for i := 0; i < 50; i++ {
		ok, _ := l.Allow("desconocido", now)
		require.True(t, ok)
		l.Release("desconocido")
	}
	assert.Zero(t, l.Tracked())
}

func TestPinLimiter_Desactivado(t *testing.T) {
	l := auth.NewPinLimiter(0, time.Minute)
	now := time.Now()
	for i := 0; i < 10; i++ {
		ok, _ := l.Allow("V1", now)
		assert.True(t, ok)
		assert.False(t, l.Failure("V1", now))
	}
	assert.Zero(t, l.Tracked())
}
