package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName — полное имя gRPC-сервиса заказов.
const ServiceName = "orderflow.v1.OrderService"

// Полные имена методов.
const (
	MethodCreateOrder  = "/" + ServiceName + "/CreateOrder"
	MethodCheckout     = "/" + ServiceName + "/Checkout"
	MethodShip         = "/" + ServiceName + "/Ship"
	MethodCancelOrder  = "/" + ServiceName + "/CancelOrder"
	MethodGetOrder     = "/" + ServiceName + "/GetOrder"
	MethodListOrders   = "/" + ServiceName + "/ListOrders"
	MethodGetTimeline  = "/" + ServiceName + "/GetTimeline"
	MethodTotalsReport = "/" + ServiceName + "/TotalsReport"
)

// OrderServiceServer — серверная часть API заказов.
type OrderServiceServer interface {
	CreateOrder(context.Context, *CreateOrderRequest) (*CreateOrderResponse, error)
	Checkout(context.Context, *CheckoutRequest) (*CheckoutResponse, error)
	Ship(context.Context, *ShipRequest) (*ShipResponse, error)
	CancelOrder(context.Context, *CancelOrderRequest) (*CancelOrderResponse, error)
	GetOrder(context.Context, *GetOrderRequest) (*GetOrderResponse, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
	GetTimeline(context.Context, *GetTimelineRequest) (*GetTimelineResponse, error)
	TotalsReport(context.Context, *TotalsReportRequest) (*TotalsReportResponse, error)
}

// OrderServiceDesc описывает сервис для grpc.Server без сгенерированного protobuf-кода.
var OrderServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateOrder", Handler: unaryHandler(MethodCreateOrder, OrderServiceServer.CreateOrder)},
		{MethodName: "Checkout", Handler: unaryHandler(MethodCheckout, OrderServiceServer.Checkout)},
		{MethodName: "Ship", Handler: unaryHandler(MethodShip, OrderServiceServer.Ship)},
		{MethodName: "CancelOrder", Handler: unaryHandler(MethodCancelOrder, OrderServiceServer.CancelOrder)},
		{MethodName: "GetOrder", Handler: unaryHandler(MethodGetOrder, OrderServiceServer.GetOrder)},
		{MethodName: "ListOrders", Handler: unaryHandler(MethodListOrders, OrderServiceServer.ListOrders)},
		{MethodName: "GetTimeline", Handler: unaryHandler(MethodGetTimeline, OrderServiceServer.GetTimeline)},
		{MethodName: "TotalsReport", Handler: unaryHandler(MethodTotalsReport, OrderServiceServer.TotalsReport)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "orderflow/v1/order_service",
}

// RegisterOrderServiceServer регистрирует реализацию на gRPC-сервере.
func RegisterOrderServiceServer(registrar grpc.ServiceRegistrar, srv OrderServiceServer) {
	registrar.RegisterService(&OrderServiceDesc, srv)
}

func unaryHandler[Req, Resp any](fullMethod string, call func(OrderServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OrderServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
