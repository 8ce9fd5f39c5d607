package grpcsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

func TestItemUnmarshalTuple(t *testing.T) {
	var req CreateOrderRequest
	err := json.Unmarshal([]byte(`{"id":"ORD-1","items":[["A100",2,3.5],{"sku":"B200","qty":1,"price":"9.9"}]}`), &req)
	require.NoError(t, err)
	require.Len(t, req.Items, 2)

	assert.Equal(t, "A100", req.Items[0].SKU)
	assert.Equal(t, int32(2), req.Items[0].Qty)
	assert.True(t, decimal.RequireFromString("3.5").Equal(req.Items[0].Price))
	assert.Equal(t, "B200", req.Items[1].SKU)
	assert.True(t, decimal.RequireFromString("9.9").Equal(req.Items[1].Price))
}

func TestItemUnmarshalTupleInvalid(t *testing.T) {
	var item Item
	assert.Error(t, json.Unmarshal([]byte(`["A100",2]`), &item))
	assert.Error(t, json.Unmarshal([]byte(`["A100","two",1]`), &item))
}

func TestValidatorDecimal(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Struct(&CreateOrderRequest{ID: "ORD-1", Items: []Item{TupleItem("A", 1, 0)}}))
	assert.Error(t, v.Struct(&CreateOrderRequest{ID: "ORD-1", Items: []Item{TupleItem("A", 1, -0.01)}}))
	assert.Error(t, v.Struct(&CreateOrderRequest{ID: "ORD-1", Items: []Item{TupleItem("A", 0, 1)}}))
	assert.Error(t, v.Struct(&CreateOrderRequest{ID: "ORD-1", Items: []Item{TupleItem("", 1, 1)}}))
}

func TestCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{fmt.Errorf("x: %w", domain.ErrOrderNotFound), codes.NotFound},
		{domain.ErrOrderExists, codes.AlreadyExists},
		{domain.ErrOrderVersionConflict, codes.Aborted},
		{domain.ErrInvalidTransition, codes.FailedPrecondition},
		{domain.ErrOrderNotPaid, codes.FailedPrecondition},
		{domain.ErrPaymentDeclined, codes.FailedPrecondition},
		{domain.ErrPaymentTemporary, codes.Unavailable},
		{domain.ErrShippingTemporary, codes.Unavailable},
		{domain.ErrCircuitOpen, codes.Unavailable},
		{errors.Join(domain.ErrItemsRequired), codes.InvalidArgument},
		{context.Canceled, codes.Canceled},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{status.Error(codes.PermissionDenied, "no"), codes.PermissionDenied},
		{errors.New("boom"), codes.Internal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, codeFor(tc.err), tc.err.Error())
	}
}

func TestToStatusHidesInternalErrors(t *testing.T) {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	s := &OrderServer{logger: logger.WithField("test", "status")}

	err := s.toStatus(errors.New("db password leaked"), "GetOrder", "ORD-1")
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Equal(t, "internal error", st.Message())
	assert.NoError(t, s.toStatus(nil, "GetOrder", ""))
}

func TestJSONCodec(t *testing.T) {
	codec := jsonCodec{}
	assert.Equal(t, CodecName, codec.Name())

	data, err := codec.Marshal(&ShipResponse{OrderID: "ORD-1", Status: domain.OrderStatusShipped, Label: "SHP-ORD-1"})
	require.NoError(t, err)

	var decoded ShipResponse
	require.NoError(t, codec.Unmarshal(data, &decoded))
	assert.Equal(t, "SHP-ORD-1", decoded.Label)
	assert.NoError(t, codec.Unmarshal(nil, &decoded))
}

func TestRecoveryUnaryInterceptor(t *testing.T) {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	interceptor := RecoveryUnaryInterceptor(logger.WithField("test", "recovery"))

	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: MethodGetOrder},
		func(context.Context, any) (any, error) { panic("boom") })
	assert.Equal(t, codes.Internal, status.Code(err))
}
