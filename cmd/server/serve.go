package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/datum-mcp-bridge/auth"
	"github.com/jrsteele09/datum-mcp-bridge/internal/config"
	"github.com/jrsteele09/datum-mcp-bridge/internal/logger"
	"github.com/jrsteele09/datum-mcp-bridge/internal/metrics"
	"github.com/jrsteele09/datum-mcp-bridge/internal/tracing"
	"github.com/jrsteele09/datum-mcp-bridge/oauth2"
	"github.com/jrsteele09/datum-mcp-bridge/openapi"
	"github.com/jrsteele09/datum-mcp-bridge/sandbox"
	"github.com/jrsteele09/datum-mcp-bridge/server"
	"github.com/jrsteele09/datum-mcp-bridge/sessions"
	"github.com/jrsteele09/datum-mcp-bridge/store"
	"github.com/jrsteele09/datum-mcp-bridge/token/refresh"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("Recovered from panic: %v", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logger.Init(c.GetEnv())
	if err := config.Validate(c); err != nil {
		return err
	}
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	tracerSetup, err := tracing.NewTracerSetup(ctx, c)
	if err != nil {
		return err
	}
	defer func() {
		if err := tracerSetup.Shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	m := metrics.NewMetricsCollector()
	refresher := newRefresher(c, m)

	handler, err := newHandler(ctx, c, m, tracerSetup, refresher)
	if err != nil {
		return err
	}

	stopRefresh := refresher.Start(ctx, c.GetOpenAPIRefreshInterval())
	defer stopRefresh()

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler}
	go listenAndServe(httpServer)
	waitForStopSignal()
	return shutdown(httpServer)
}

func newHandler(ctx context.Context, c config.Config, m *metrics.MetricsCollector, ts *tracing.TracerSetup, refresher *openapi.Refresher) (http.Handler, error) {
	idp, err := oauth2.Discover(ctx, oauth2.DiscoverConfig{
		IssuerURL:    c.GetIssuer(),
		ClientID:     c.GetClientID(),
		ClientSecret: c.GetClientSecret(),
		RedirectURL:  c.GetRedirectURI(),
		Scopes:       c.GetScopes(),
	})
	if err != nil {
		return nil, err
	}

	mgr := sessions.NewManager(store.NewFileStore(c.GetStorePath(), store.WithObserver(m.ObserveStoreWrite)))
	policy := refresh.NewPolicy(mgr, idp,
		refresh.WithWindow(c.GetRefreshWindow()),
		refresh.WithObserver(m.ObserveTokenRefresh),
	)

	authService, err := auth.NewService(mgr, policy, idp,
		auth.WithCliTokenTTL(c.GetCliTokenTTL()),
		auth.WithSpecEnsurer(refresher),
	)
	if err != nil {
		return nil, err
	}

	apiClient := sandbox.NewAPIClient(c.GetAPIBase(),
		sandbox.WithRequestLogging(c.GetLogAPIRequests(), c.GetLogAPIResponses()),
		sandbox.WithRequestObserver(m.ObserveAPIRequest),
		sandbox.WithAPITracer(ts.Tracer()),
	)
	executor := sandbox.NewExecutor(
		sandbox.WithTimeout(c.GetSandboxTimeout()),
		sandbox.WithMaxOutputChars(c.GetMaxOutputChars()),
		sandbox.WithObserver(m.ObserveSandbox),
		sandbox.WithTracer(ts.Tracer()),
	)

	return server.New(c, server.Dependencies{
		Auth:      authService,
		Executor:  executor,
		APIClient: apiClient,
		Metrics:   m,
		Tracer:    ts.Tracer(),
	})
}

func newRefresher(c config.Config, m *metrics.MetricsCollector) *openapi.Refresher {
	fetcher := openapi.NewFetcher(c.GetAPIBase(), &http.Client{Timeout: time.Minute})
	return openapi.NewRefresher(fetcher, openapi.RefresherConfig{
		IndexPath:    c.GetOpenAPIIndexPath(),
		Resources:    c.GetOpenAPIResources(),
		MaxResources: c.GetOpenAPIMaxResources(),
		Token:        c.GetOpenAPIToken(),
		SpecPath:     c.GetSpecPath(),
		ProductsPath: c.GetProductsPath(),
	}, openapi.WithObserver(m.ObserveSpecRefresh))
}

func listenAndServe(server *http.Server) {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	log.Info().Msg("Server stopped")
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
