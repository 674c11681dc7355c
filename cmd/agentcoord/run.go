package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/agentcoord/internal/coordination"
	"github.com/aristath/agentcoord/internal/delivery"
	"github.com/aristath/agentcoord/internal/events"
	"github.com/aristath/agentcoord/internal/history"
	"github.com/aristath/agentcoord/internal/logging"
	"github.com/aristath/agentcoord/internal/registry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the coordination engine until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runEngine,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runEngine(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	reg := registry.New()
	for id, t := range cfg.Targets {
		reg.SetTarget(registry.Target{
			AgentID:  id,
			Kind:     t.Kind,
			Endpoint: t.Endpoint,
			Channel:  t.Channel,
		})
	}

	bus := events.NewBus()

	ws := delivery.NewWebSocketTransport(logging.NewComponent(log, "websocket"))
	transports := []delivery.Transport{
		delivery.NewLogTransport(logging.NewComponent(log, "delivery")),
		ws,
	}
	gateway := delivery.NewGateway(reg, transports, delivery.Options{
		TargetTTL: cfg.Delivery.TargetTTL.Std(),
		Logger:    logging.NewComponent(log, "gateway"),
		Bus:       bus,
	})

	engine := coordination.NewEngine(reg, gateway, bus, logging.NewComponent(log, "engine"), coordination.Config{
		QueueSize:     cfg.Engine.QueueSize,
		WorkerTimeout: cfg.Engine.WorkerTimeout.Std(),
		SessionTTL:    cfg.Engine.SessionTTL.Std(),
	})

	var archiver *history.Archiver
	if cfg.History != "" {
		store, err := history.Open(ctx, cfg.History)
		if err != nil {
			return fmt.Errorf("opening history archive: %w", err)
		}
		defer store.Close()

		archiver = history.NewArchiver(store, bus, logging.NewComponent(log, "history"))
		go archiver.Run(ctx)
		log.Info("history archiving enabled", "path", cfg.History)
	}

	engine.Start(ctx)

	status, _ := gateway.Health()
	log.Info("engine running",
		"targets", len(cfg.Targets),
		"queue_size", cfg.Engine.QueueSize,
		"gateway_health", string(status))

	<-ctx.Done()
	stop()
	log.Info("shutdown signal received")

	engine.Stop()
	bus.Close()
	if err := ws.Close(); err != nil {
		log.Warn("closing websocket transport", "error", err)
	}

	if archiver != nil {
		select {
		case <-archiver.Done():
		case <-time.After(5 * time.Second):
			log.Warn("history archiver did not drain in time")
		}
	}

	log.Info("shutdown complete")
	return nil
}
