package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"pathbridge/internal/bridge"
	"pathbridge/internal/config"
	"pathbridge/internal/device"
	"pathbridge/internal/httpapi"
)

// BridgeOptions exposes hooks used by tests; the zero value is fine in production.
type BridgeOptions struct {
	Fetcher bridge.Fetcher
	Ready   chan<- string
}

// RunBridge serves the device link and the bridge's /healthz and /metrics
// until ctx is done, then waits for in-flight schedule requests.
func RunBridge(ctx context.Context, cfg config.Config, logger *slog.Logger, opts BridgeOptions) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"transport", cfg.Transport,
		"scheduleBaseURL", cfg.ScheduleBaseURL,
		"bridgeHTTPTimeout", cfg.BridgeHTTPTimeout,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopicPrefix", cfg.MQTTTopicPrefix,
	)

	mux := http.NewServeMux()
	transport, err := newTransport(cfg, logger, mux)
	if err != nil {
		return err
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = bridge.NewHTTPFetcher(cfg.BridgeHTTPTimeout)
	}
	registry := bridge.NewRegistry()
	b := bridge.New(bridge.Options{
		BaseURL: cfg.ScheduleBaseURL,
		Fetcher: fetcher,
		Sender:  transport,
		Logger:  logger,
	})
	b.Register(registry)

	api := httpapi.NewMux(map[string]httpapi.Check{
		"device_link": httpapi.LinkCheck(transport.IsConnected),
	}, logger)
	api.Handle("/ws/", mux)
	srv := httpapi.NewServer(cfg.HTTPAddr, api, logger)

	linkCtx, stopLink := context.WithCancel(ctx)
	defer stopLink()
	linkDone := make(chan struct{})
	go func() {
		defer close(linkDone)
		if err := transport.Run(linkCtx, registry.Dispatch); err != nil && linkCtx.Err() == nil {
			// The HTTP server keeps /healthz up so the failure is visible.
			logger.Error("device link stopped", "transport", cfg.Transport, "error", err)
		}
	}()

	serveErr := serve(ctx, srv, logger, opts.Ready)

	stopLink()
	<-linkDone

	logger.Info("waiting for in-flight requests")
	waitDone := make(chan struct{})
	go func() {
		b.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		logger.Warn("in-flight requests still running at shutdown")
	}

	if serveErr != nil {
		return serveErr
	}
	return ctx.Err()
}

func newTransport(cfg config.Config, logger *slog.Logger, mux *http.ServeMux) (device.Transport, error) {
	switch cfg.Transport {
	case config.TransportMQTT:
		return device.NewMQTTTransport(cfg, logger), nil
	case config.TransportWebSocket:
		ws := device.NewWebSocketTransport(logger)
		ws.RegisterRoutes(mux)
		return ws, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}
