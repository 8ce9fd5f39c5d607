package shipping

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/metrics"
)

func TestMockGateway_Label(t *testing.T) {
	gw := NewMockGateway(0)
	label, err := gw.Ship(context.Background(), domain.Order{ID: "ORD-1"})
	require.NoError(t, err)
	assert.Equal(t, "SHP-ORD-1", label)
}

func TestMockGateway_ContextCancelled(t *testing.T) {
	gw := NewMockGateway(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.Ship(ctx, domain.Order{ID: "ORD-1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStubGateway(t *testing.T) {
	stub := &StubGateway{}
	label, err := stub.Ship(context.Background(), domain.Order{ID: "X"})
	require.NoError(t, err)
	assert.Equal(t, "SHP-X", label)

	stub.Err = domain.ErrShippingTemporary
	_, err = stub.Ship(context.Background(), domain.Order{ID: "X"})
	assert.ErrorIs(t, err, domain.ErrShippingTemporary)
	assert.Equal(t, 2, stub.CallCount())
}

func TestTimedGateway(t *testing.T) {
	reg := prometheus.NewRegistry()
	gw := NewTimedGateway(&StubGateway{Err: errors.New("down")}, metrics.NewGatewayMetricsWithRegisterer(reg), nil)

	_, err := gw.Ship(context.Background(), domain.Order{ID: "ORD-2"})
	require.Error(t, err)

	count, err := testutil.GatherAndCount(reg, "orderflow_gateway_call_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
