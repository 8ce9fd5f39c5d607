package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/app"
	"github.com/vladislavdragonenkov/orderflow/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.LookupEnv, os.Stdout, app.Run); err != nil {
		log.WithError(err).Fatal("order service exited with error")
	}
}

// run разбирает флаги и окружение и запускает сервис через start.
// Остановка по сигналу не считается ошибкой.
func run(ctx context.Context, args []string, lookup envLookup, out io.Writer, start func(context.Context, app.Config) error) error {
	fs := flag.NewFlagSet("order-service", flag.ContinueOnError)
	fs.SetOutput(out)
	showVersion := fs.Bool("version", false, "print build info and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		_, err := fmt.Fprintln(out, version.String())
		return err
	}

	cfg, warnings := readConfigFromEnv(lookup)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(cfg.LogLevel)
	for _, w := range warnings {
		log.WithError(w.Err).WithField("env", w.Key).Warn("ignoring invalid environment value")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.WithFields(version.Fields()).WithFields(log.Fields{
		"grpc_addr":    cfg.GRPCAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
		"kafka":        len(cfg.KafkaBrokers) > 0,
		"redis":        cfg.RedisAddr != "",
	}).Info("starting order service")

	err := start(ctx, cfg)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("order service stopped")
	return nil
}
