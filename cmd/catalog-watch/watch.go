package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Sternrassler/catalog-client/pkg/logging"
	"github.com/Sternrassler/catalog-client/pkg/metrics"
	"github.com/Sternrassler/catalog-client/pkg/notification"
	"github.com/Sternrassler/catalog-client/pkg/resource"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type watchOptions struct {
	limit     int
	interval  time.Duration
	overrides []string
	batch     bool
	listen    string
}

// runner is satisfied by both pipeline variants.
type runner interface {
	Start(ctx context.Context, limit int) error
	Cancel()
}

func newWatchCommand(opts *options) *cobra.Command {
	w := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the change-notification feed and print notifications as JSON lines",
		Long: `Polls the change-notification feed, rewrites notifications for resources
pinned with --override into the pinned version, and prints each one to
stdout as a JSON line. The first SIGINT/SIGTERM finishes the current cycle,
a second one aborts immediately.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			signals := make(chan os.Signal, 2)
			signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(signals)

			return runWatch(ctx, cancel, opts, w, cmd.OutOrStdout(), signals)
		},
	}

	f := cmd.Flags()
	f.IntVar(&w.limit, "limit", 100, "maximum notifications per poll")
	f.DurationVar(&w.interval, "interval", notification.DefaultPollInterval, "delay between polls")
	f.StringArrayVar(&w.overrides, "override", nil, "pin a resource to a version, name=version (repeatable)")
	f.BoolVar(&w.batch, "batch", false, "deliver each poll as one batch")
	f.StringVar(&w.listen, "listen", ":"+getEnv("PORT", "8080"), "address for /health and /metrics (empty disables)")
	return cmd
}

func runWatch(ctx context.Context, cancel context.CancelFunc, opts *options, w *watchOptions, out io.Writer, signals <-chan os.Signal) error {
	logger := logging.NewLogger(logging.ComponentWatch)

	pins, err := splitPairs("override", w.overrides)
	if err != nil {
		return err
	}
	overrides := notification.NewVersionOverrides()
	if err := overrides.SetAll(pins); err != nil {
		return err
	}

	c, cleanup, err := opts.newClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := notification.Config{
		Feed:         c,
		Fetcher:      c,
		Overrides:    overrides,
		PollInterval: w.interval,
	}
	p := newPrinter(out, logger)

	var pipeline runner
	if w.batch {
		bp, err := notification.NewBatchPipeline(cfg)
		if err != nil {
			return err
		}
		if err := bp.Attach(p.batchSubscriber()); err != nil {
			return err
		}
		pipeline = bp
	} else {
		sp, err := notification.NewPipeline(cfg)
		if err != nil {
			return err
		}
		if err := sp.Attach(p.subscriber()); err != nil {
			return err
		}
		pipeline = sp
	}

	if w.listen != "" {
		srv, addr, err := serve(w.listen)
		if err != nil {
			return err
		}
		logger.Info().Str("addr", addr).Msg("Serving health and metrics")
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			srv.Shutdown(shutdownCtx)
		}()
	}

	go func() {
		select {
		case <-signals:
		case <-ctx.Done():
			return
		}
		logger.Info().Msg("Finishing current cycle, signal again to abort")
		pipeline.Cancel()

		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	err = pipeline.Start(ctx, w.limit)
	logger.Info().Int("printed", p.count()).Msg("Watch finished")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// serve starts the health and metrics server on addr and returns the
// resolved listen address.
func serve(addr string) (*http.Server, string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go srv.Serve(ln)
	return srv, ln.Addr().String(), nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// printer writes notifications to out as JSON lines.
type printer struct {
	mu      sync.Mutex
	enc     *json.Encoder
	printed int
	logger  zerolog.Logger
}

func newPrinter(out io.Writer, logger zerolog.Logger) *printer {
	return &printer{enc: json.NewEncoder(out), logger: logger}
}

func (p *printer) print(notes ...resource.ChangeNotification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range notes {
		if err := p.enc.Encode(n); err != nil {
			return fmt.Errorf("write notification %s: %w", n.ID, err)
		}
		p.printed++
	}
	return nil
}

func (p *printer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printed
}

func (p *printer) onError(err error) {
	p.logger.Error().Err(err).Msg("Failed to print notification")
}

func (p *printer) subscriber() *notification.SubscriberFuncs[resource.ChangeNotification] {
	return &notification.SubscriberFuncs[resource.ChangeNotification]{
		Notification: func(_ context.Context, n resource.ChangeNotification) error {
			return p.print(n)
		},
		Error: p.onError,
	}
}

func (p *printer) batchSubscriber() *notification.SubscriberFuncs[[]resource.ChangeNotification] {
	return &notification.SubscriberFuncs[[]resource.ChangeNotification]{
		Notification: func(_ context.Context, batch []resource.ChangeNotification) error {
			return p.print(batch...)
		},
		Error: p.onError,
	}
}
