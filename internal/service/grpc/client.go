package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
)

// Client вызывает OrderService через JSON-кодек.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient оборачивает соединение.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// CallOptions выбирают JSON-кодек для вызова.
func CallOptions() []grpc.CallOption {
	return []grpc.CallOption{grpc.CallContentSubtype(CodecName)}
}

func invoke[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in *Req, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, method, in, out, append(CallOptions(), opts...)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateOrder(ctx context.Context, in *CreateOrderRequest, opts ...grpc.CallOption) (*CreateOrderResponse, error) {
	return invoke[CreateOrderRequest, CreateOrderResponse](ctx, c.cc, MethodCreateOrder, in, opts)
}

func (c *Client) Checkout(ctx context.Context, in *CheckoutRequest, opts ...grpc.CallOption) (*CheckoutResponse, error) {
	return invoke[CheckoutRequest, CheckoutResponse](ctx, c.cc, MethodCheckout, in, opts)
}

func (c *Client) Ship(ctx context.Context, in *ShipRequest, opts ...grpc.CallOption) (*ShipResponse, error) {
	return invoke[ShipRequest, ShipResponse](ctx, c.cc, MethodShip, in, opts)
}

func (c *Client) CancelOrder(ctx context.Context, in *CancelOrderRequest, opts ...grpc.CallOption) (*CancelOrderResponse, error) {
	return invoke[CancelOrderRequest, CancelOrderResponse](ctx, c.cc, MethodCancelOrder, in, opts)
}

func (c *Client) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*GetOrderResponse, error) {
	return invoke[GetOrderRequest, GetOrderResponse](ctx, c.cc, MethodGetOrder, in, opts)
}

func (c *Client) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	return invoke[ListOrdersRequest, ListOrdersResponse](ctx, c.cc, MethodListOrders, in, opts)
}

func (c *Client) GetTimeline(ctx context.Context, in *GetTimelineRequest, opts ...grpc.CallOption) (*GetTimelineResponse, error) {
	return invoke[GetTimelineRequest, GetTimelineResponse](ctx, c.cc, MethodGetTimeline, in, opts)
}

func (c *Client) TotalsReport(ctx context.Context, in *TotalsReportRequest, opts ...grpc.CallOption) (*TotalsReportResponse, error) {
	return invoke[TotalsReportRequest, TotalsReportResponse](ctx, c.cc, MethodTotalsReport, in, opts)
}
