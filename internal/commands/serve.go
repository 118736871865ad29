package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cashboxes/internal/amqp"
	"cashboxes/internal/auth"
	"cashboxes/internal/cache"
	"cashboxes/internal/cli"
	"cashboxes/internal/core"
	"cashboxes/internal/files"
	apphttp "cashboxes/internal/http"
	applog "cashboxes/internal/log"
	"cashboxes/internal/services"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	a, err := openApp(parent, applog.ComponentHTTP, false)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, logger := a.cfg, a.logger

	ctx, cancel := cli.SignalContext(parent, logger)
	defer cancel()

	docs, err := files.NewStore(cfg.MediaRoot)
	if err != nil {
		return fmt.Errorf("open media root: %w", err)
	}

	manager := cache.NewManager()
	var balances cache.Cache[core.Euro]
	if cfg.BalanceCacheTTL > 0 {
		lru := cache.NewLRUCache[core.Euro](cfg.BalanceCacheSize, cfg.BalanceCacheTTL)
		manager.Register(lru)
		balances = lru
	}
	ledger := services.NewLedger(a.store, balances)

	opts := []services.InvoiceOption{
		services.WithLedger(ledger),
		services.WithMaxUpload(cfg.MaxUploadBytes()),
	}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without export messages", applog.FieldError, err)
		} else {
			defer client.Close()
			opts = append(opts, services.WithPublisher(client))
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	invoices := services.NewInvoiceService(a.store, docs, opts...)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Store:     a.store,
		Ledger:    ledger,
		Invoices:  invoices,
		Documents: docs,
		Auth:      auth.NewAuthenticator(a.store),
		Logger:    logger,
	}, apphttp.Options{
		Realm:          cfg.BasicRealm,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		RateLimitRPM:   cfg.RateLimitRPM,
		TrustedProxies: cfg.TrustedProxyCIDRs(),
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	logger.Info("Starting cashboxes server", "config", cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return manager.Run(gctx, 10*time.Minute) })
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
