package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute, nil)
	now := time.Now()
	cb.now = func() time.Time { return now }
	boom := errors.New("boom")

	assert.Equal(t, boom, cb.Execute("op", func() error { return boom }))
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, boom, cb.Execute("op", func() error { return boom }))
	assert.Equal(t, CircuitOpen, cb.State())

	called := false
	err := cb.Execute("op", func() error { called = true; return nil })
	assert.ErrorIs(t, err, domain.ErrCircuitOpen)
	assert.False(t, called)

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Execute("op", func() error { return nil }))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Second, nil)
	now := time.Now()
	cb.now = func() time.Time { return now }

	_ = cb.Execute("op", func() error { return domain.ErrPaymentTemporary })
	require.Equal(t, CircuitOpen, cb.State())

	now = now.Add(2 * time.Second)
	_ = cb.Execute("op", func() error { return domain.ErrPaymentTemporary })
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreaker_BusinessErrorsDoNotTrip(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute, nil)

	err := cb.Execute("op", func() error { return domain.ErrPaymentDeclined })
	assert.ErrorIs(t, err, domain.ErrPaymentDeclined)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(42).String())
}
