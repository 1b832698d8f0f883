package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cdr.dev/slog/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lazypower/vaultactivity/internal/engine"
	"github.com/lazypower/vaultactivity/internal/server"
	"github.com/lazypower/vaultactivity/internal/vault"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Track a vault and serve the API and dashboard",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := openApp(ctx, reg, false)
	if err != nil {
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Close(cctx, true); err != nil {
			fmt.Fprintf(os.Stderr, "final save failed: %v\n", err)
		}
	}()

	a.tracker.Start(ctx)

	srv := server.New(server.Options{
		Engine:      a.engine,
		Version:     VersionString(),
		Logger:      a.logger.Named("http"),
		Gatherer:    reg,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		RateLimit:   a.cfg.Server.RateLimit,
	})
	addr := a.cfg.ListenAddr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "vaultactivity serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  vault: %s\n", a.vault.Root())
		fmt.Fprintf(os.Stderr, "  data: %s\n", a.tracker.DataPath())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if a.cfg.Vault.Watch {
		w, err := vault.NewWatcher()
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: file watching disabled (%v)\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "  watching for changes\n")
			g.Go(func() error {
				defer w.Close()
				return a.vault.Watch(gctx, w, a.logger.Named("watch"), func(p string) {
					if _, err := a.engine.Track(engine.KindChange, p); err != nil {
						a.logger.Warn(gctx, "track change", slog.F("path", p), slog.Error(err))
					}
				})
			})
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "\nshutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(sctx)
	})

	return g.Wait()
}
