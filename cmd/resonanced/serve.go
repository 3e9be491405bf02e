package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Pharbi/arachnid/internal/capability"
	"github.com/Pharbi/arachnid/internal/coordination"
	"github.com/Pharbi/arachnid/internal/events"
	"github.com/Pharbi/arachnid/internal/httpapi"
	"github.com/Pharbi/arachnid/internal/ports"
	"github.com/Pharbi/arachnid/internal/providers"
	"github.com/Pharbi/arachnid/internal/store"
	"github.com/Pharbi/arachnid/internal/telemetry"
)

func newServeCommand(c *cli) *cobra.Command {
	var tickInterval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/websocket API, ticking every running web on an interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tickInterval <= 0 {
				tickInterval = time.Second
			}

			st := store.NewMemStore()
			bus := events.NewBus()
			tp, err := telemetry.NewTracerProvider(c.cfg)
			if err != nil {
				return fmt.Errorf("tracer provider: %w", err)
			}
			mp, err := telemetry.NewMeterProvider(c.cfg)
			if err != nil {
				return fmt.Errorf("meter provider: %w", err)
			}

			loop := coordination.New(st, ports.Providers{
				LLM:       providers.Echo{},
				Embedding: providers.HashEmbedding{Dim: c.cfg.TuningDimension},
			}, capability.Default(), bus).
				WithLogger(c.logger).
				WithTracer(tp.Tracer()).
				WithMeter(mp)

			server := httpapi.New(loop, bus, c.cfg, c.logger)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			go tickAllRunningWebs(ctx, loop, st, tickInterval, c.logger)

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			fmt.Println(statusColor("resonanced serving on " + c.cfg.HTTPBindAddr))
			select {
			case <-ctx.Done():
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				_ = tp.Shutdown(shutdownCtx)
				return server.Stop(shutdownCtx)
			case err := <-errCh:
				return err
			}
		},
	}

	cmd.Flags().DurationVar(&tickInterval, "tick-interval", time.Second, "interval between coordination ticks across all running webs")
	return cmd
}

// tickAllRunningWebs drives every Running web forward on interval until ctx
// is cancelled, the single background scheduler a real deployment needs
// since the coordination loop itself performs no timer-driven work.
func tickAllRunningWebs(ctx context.Context, loop *coordination.Loop, st *store.MemStore, interval time.Duration, logger interface {
	Warn(format string, args ...any)
}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			webs, err := st.ListRunningWebs(ctx)
			if err != nil {
				logger.Warn("list running webs: %v", err)
				continue
			}
			for _, w := range webs {
				if _, err := loop.Tick(ctx, w.ID); err != nil {
					logger.Warn("tick web %s: %v", w.ID, err)
				}
			}
		}
	}
}
