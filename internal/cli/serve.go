package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"hemo-board/internal/feed"
	"hemo-board/internal/identity"
	"hemo-board/internal/metrics"
	"hemo-board/internal/store"
	"hemo-board/internal/web"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string
	var authMode string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board over HTTP with live websocket updates",
		Long: strings.TrimSpace(`
Serve the JSON API, the /api/ws change stream and Prometheus metrics.

With mqtt.broker configured, local changes are published to the broker and
changes from other instances trigger the same notifications as local ones.
`),
		Example: strings.TrimSpace(`
hemoboard serve --addr :8080 --user ana@hosp.es
HEMO_WEB__SECRET=s3cret hemoboard serve --auth token
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			wc := app.cfg.Web
			if cmd.Flags().Changed("addr") {
				wc.Addr = addr
			}
			if cmd.Flags().Changed("auth") {
				wc.AuthMode = strings.ToLower(strings.TrimSpace(authMode))
			}
			if err := wc.Validate(); err != nil {
				return writeErr(cmd, fmt.Errorf("web: %w", err))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := app.openStore(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			sink, err := metrics.NewPromSink(prometheus.DefaultRegisterer)
			if err != nil {
				return writeErr(cmd, err)
			}
			var tokens *identity.Tokens
			var mailer web.Mailer
			if wc.AuthMode == "token" {
				tokens = identity.NewTokens(wc.Secret, wc.TokenTTL())
				mailer = web.OutboxMailer{Dir: wc.OutboxDir}
			}
			srv, err := web.NewServer(web.ServerConfig{
				Addr:     wc.Addr,
				AuthMode: wc.AuthMode,
				Backend:  s,
				Service:  app.service(s, sink),
				Identity: app.session(s),
				Tokens:   tokens,
				Mailer:   mailer,
				Gatherer: prometheus.DefaultGatherer,
				Logger:   app.logger("web"),
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer srv.Close()

			bridge, err := app.connectFeed(s)
			if err != nil {
				return writeErr(cmd, err)
			}
			if bridge != nil {
				defer bridge.Close()
			}

			_ = writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"addr":      wc.Addr,
					"url":       "http://" + wc.Addr + "/api",
					"authMode":  wc.AuthMode,
					"store":     app.cfg.Store.Backend,
					"mqtt":      bridge != nil,
					"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
				},
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.ListenAndServe(gctx) })
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Bind address (default: web.addr)")
	cmd.Flags().StringVar(&authMode, "auth", "", "Auth mode none|token (default: web.auth_mode)")
	return cmd
}

// connectFeed starts the MQTT bridge when a broker is configured.
func (app *App) connectFeed(s store.Backend) (*feed.Bridge, error) {
	if !app.cfg.MQTT.Enabled() {
		return nil, nil
	}
	return feed.Connect(app.cfg.MQTT, s, app.logger("feed"))
}
