// Команда checkout-demo проводит заказ ORD-1 через создание, оплату и отгрузку
// и печатает трек-лейбл вместе с отчётом по итогам.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/vladislavdragonenkov/orderflow/internal/app"
	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	grpcsvc "github.com/vladislavdragonenkov/orderflow/internal/service/grpc"
)

// demoItems — позиции демонстрационного заказа.
var demoItems = []domain.OrderItem{
	{SKU: "A100", Qty: 2, Price: decimal.RequireFromString("3.5")},
	{SKU: "B200", Qty: 1, Price: decimal.RequireFromString("9.9")},
}

type options struct {
	addr        string
	orderID     string
	method      string
	failureRate float64
	timeout     time.Duration
}

// flow — шаги сценария, одинаковые для локального сервиса и удалённого gRPC.
type flow interface {
	Create(ctx context.Context, id string, items []domain.OrderItem) error
	Checkout(ctx context.Context, id, method string) (domain.PaymentResult, error)
	Ship(ctx context.Context, id string) (string, error)
	Report(ctx context.Context) (map[string]decimal.Decimal, error)
}

type output struct {
	Label  string       `json:"label"`
	Report reportTotals `json:"report"`
}

// reportTotals печатает итоги JSON-числами, не трогая глобальную настройку decimal.
type reportTotals map[string]decimal.Decimal

func (r reportTotals) MarshalJSON() ([]byte, error) {
	numbers := make(map[string]json.Number, len(r))
	for id, total := range r {
		numbers[id] = json.Number(total.String())
	}
	return json.Marshal(numbers)
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.WarnLevel)
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.WithError(err).Error("checkout demo failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	var f flow
	if opts.addr != "" {
		remote, closeFn, err := dialRemote(opts.addr)
		if err != nil {
			return err
		}
		defer closeFn()
		f = remote
	} else {
		local, closeFn, err := buildLocal(ctx, opts)
		if err != nil {
			return err
		}
		defer closeFn()
		f = local
	}

	result, err := runFlow(ctx, f, opts)
	if err != nil {
		return err
	}

	return json.NewEncoder(out).Encode(result)
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("checkout-demo", flag.ContinueOnError)
	var opts options
	fs.StringVar(&opts.addr, "addr", "", "address of a running order-service; empty runs the flow in-process")
	fs.StringVar(&opts.orderID, "order", "ORD-1", "order id")
	fs.StringVar(&opts.method, "method", string(domain.PaymentMethodCard), "payment method")
	fs.Float64Var(&opts.failureRate, "failure-rate", 0.1, "in-process mock payment failure rate")
	fs.DurationVar(&opts.timeout, "timeout", 10*time.Second, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.failureRate < 0 || opts.failureRate > 1 {
		return options{}, fmt.Errorf("failure-rate must be within [0, 1]")
	}
	return opts, nil
}

func runFlow(ctx context.Context, f flow, opts options) (output, error) {
	if err := f.Create(ctx, opts.orderID, demoItems); err != nil {
		return output{}, fmt.Errorf("create order: %w", err)
	}
	payment, err := f.Checkout(ctx, opts.orderID, opts.method)
	if err != nil {
		return output{}, fmt.Errorf("checkout: %w", err)
	}
	if !payment.OK {
		return output{}, fmt.Errorf("checkout: %w: %s", domain.ErrPaymentDeclined, payment.Message)
	}
	label, err := f.Ship(ctx, opts.orderID)
	if err != nil {
		return output{}, fmt.Errorf("ship: %w", err)
	}
	report, err := f.Report(ctx)
	if err != nil {
		return output{}, fmt.Errorf("totals report: %w", err)
	}
	return output{Label: label, Report: report}, nil
}

// localFlow работает с сервисом заказов в этом же процессе.
type localFlow struct {
	svc grpcsvc.OrderService
}

func buildLocal(ctx context.Context, opts options) (*localFlow, func(), error) {
	cfg := app.DefaultConfig()
	cfg.PaymentFailureRate = opts.failureRate

	rt, err := app.Build(ctx, cfg, prometheus.NewRegistry(), log.WithField("component", "checkout-demo"))
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := rt.Close(); err != nil {
			log.WithError(err).Warn("failed to close runtime")
		}
	}
	return &localFlow{svc: rt.Orders}, closeFn, nil
}

func (l *localFlow) Create(ctx context.Context, id string, items []domain.OrderItem) error {
	_, err := l.svc.CreateOrder(ctx, id, items)
	return err
}

func (l *localFlow) Checkout(ctx context.Context, id, method string) (domain.PaymentResult, error) {
	return l.svc.Checkout(ctx, id, domain.PaymentMethod(method))
}

func (l *localFlow) Ship(ctx context.Context, id string) (string, error) {
	return l.svc.Ship(ctx, id)
}

func (l *localFlow) Report(ctx context.Context) (map[string]decimal.Decimal, error) {
	return l.svc.TotalsReport(ctx)
}

// remoteFlow ходит в запущенный order-service по gRPC.
type remoteFlow struct {
	client *grpcsvc.Client
}

func dialRemote(addr string) (*remoteFlow, func(), error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return newRemoteFlow(conn), func() { _ = conn.Close() }, nil
}

func newRemoteFlow(cc grpc.ClientConnInterface) *remoteFlow {
	return &remoteFlow{client: grpcsvc.NewClient(cc)}
}

func (r *remoteFlow) Create(ctx context.Context, id string, items []domain.OrderItem) error {
	req := &grpcsvc.CreateOrderRequest{ID: id}
	for _, item := range items {
		req.Items = append(req.Items, grpcsvc.Item{SKU: item.SKU, Qty: item.Qty, Price: item.Price})
	}
	_, err := r.client.CreateOrder(ctx, req)
	return err
}

func (r *remoteFlow) Checkout(ctx context.Context, id, method string) (domain.PaymentResult, error) {
	resp, err := r.client.Checkout(ctx, &grpcsvc.CheckoutRequest{OrderID: id, Method: method})
	if err != nil {
		return domain.PaymentResult{}, err
	}
	return resp.Payment, nil
}

func (r *remoteFlow) Ship(ctx context.Context, id string) (string, error) {
	resp, err := r.client.Ship(ctx, &grpcsvc.ShipRequest{OrderID: id})
	if err != nil {
		return "", err
	}
	return resp.Label, nil
}

func (r *remoteFlow) Report(ctx context.Context) (map[string]decimal.Decimal, error) {
	resp, err := r.client.TotalsReport(ctx, &grpcsvc.TotalsReportRequest{})
	if err != nil {
		return nil, err
	}
	return resp.Report, nil
}

var (
	_ flow = (*localFlow)(nil)
	_ flow = (*remoteFlow)(nil)
)
