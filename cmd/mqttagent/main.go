// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/absmach/mqttagent/agent"
	"github.com/absmach/mqttagent/config"
	"github.com/absmach/mqttagent/engine"
	"github.com/absmach/mqttagent/packets"
	"github.com/absmach/mqttagent/ratelimit"
	"github.com/absmach/mqttagent/reconnect"
	"github.com/absmach/mqttagent/transport"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	subscribe := flag.String("subscribe", "", "Comma-separated topic filters to subscribe to")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	slog.Info("Starting MQTT agent",
		"broker", cfg.Broker.Address,
		"client_id", cfg.Client.ID,
		"clean_session", cfg.Client.CleanSession,
		"log_level", cfg.Log.Level)

	tlsConfig, err := buildTLSConfig(cfg)
	if err != nil {
		slog.Error("Failed to build TLS configuration", "error", err)
		os.Exit(1)
	}

	eng := engine.New(nil, engine.Options{Logger: logger})

	opts := agent.Options{
		QueueSize:          cfg.Agent.QueueSize,
		PoolSize:           cfg.Agent.PoolSize,
		MaxOutstandingAcks: cfg.Agent.MaxOutstandingAcks,
		EventQueueWait:     cfg.Agent.EventQueueWait,
		Logger:             logger,
		OnPublish: func(_ any, msg *agent.Message) {
			slog.Info("Message received",
				"topic", msg.Topic,
				"qos", msg.QoS,
				"retained", msg.Retain,
				"payload_len", len(msg.Payload))
		},
	}

	if cfg.Agent.MetricsEnabled {
		metrics, err := agent.NewMetrics()
		if err != nil {
			slog.Error("Failed to initialize metrics", "error", err)
			os.Exit(1)
		}
		opts.Metrics = metrics
	}

	if cfg.RateLimit.Enabled {
		limiter := ratelimit.NewTopicLimiter(cfg.RateLimit.Rate, cfg.RateLimit.Burst, time.Minute)
		defer limiter.Stop()
		opts.PublishLimiter = limiter
	}

	ag, err := agent.New(eng, opts)
	if err != nil {
		slog.Error("Failed to create agent", "error", err)
		os.Exit(1)
	}

	connectOpts := &agent.ConnectOptions{
		ClientID:     cfg.Client.ID,
		Username:     cfg.Client.Username,
		KeepAlive:    uint16(cfg.Client.KeepAlive / time.Second),
		CleanSession: cfg.Client.CleanSession,
	}
	if cfg.Client.Password != "" {
		connectOpts.Password = []byte(cfg.Client.Password)
	}
	if cfg.Client.WillTopic != "" {
		connectOpts.Will = &agent.WillMessage{
			Topic:   cfg.Client.WillTopic,
			Payload: []byte(cfg.Client.WillPayload),
			QoS:     cfg.Client.WillQoS,
			Retain:  cfg.Client.WillRetain,
		}
	}

	filters := splitFilters(*subscribe)

	runner, err := reconnect.NewRunner(ag, eng, dialer(cfg, tlsConfig), reconnect.Config{
		Connect:            connectOpts,
		BackoffMin:         cfg.Reconnect.BackoffMin,
		BackoffMax:         cfg.Reconnect.BackoffMax,
		BreakerMaxFailures: cfg.Reconnect.BreakerMaxFailures,
		BreakerCooldown:    cfg.Reconnect.BreakerCooldown,
		Logger:             logger,
		OnSessionUp: func(sessionPresent bool) {
			slog.Info("Session established", "session_present", sessionPresent)
			if !sessionPresent {
				subscribeFilters(ag, filters)
			}
		},
	})
	if err != nil {
		slog.Error("Failed to create runner", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runner.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("Shutting down", "signal", sig.String())
		if err := ag.Terminate(agent.CommandInfo{BlockTime: agent.Forever}); err != nil {
			slog.Warn("Terminate failed, cancelling", "error", err)
			cancel()
		}
		select {
		case err := <-done:
			if err != nil && err != context.Canceled {
				slog.Error("Agent exited with error", "error", err)
				os.Exit(1)
			}
		case <-time.After(10 * time.Second):
			slog.Warn("Shutdown timed out")
			cancel()
			<-done
		}
	case err := <-done:
		if err != nil {
			slog.Error("Agent exited with error", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Agent stopped")
}

func dialer(cfg *config.Config, tlsConfig *tls.Config) reconnect.Dialer {
	return func(ctx context.Context) (net.Conn, error) {
		if cfg.Broker.Websocket {
			return transport.DialWebsocket(cfg.Broker.Address, tlsConfig, cfg.Broker.DialTimeout)
		}
		if tlsConfig != nil {
			return transport.DialTLS(cfg.Broker.Address, tlsConfig, cfg.Broker.DialTimeout)
		}
		return transport.Dial(cfg.Broker.Address, cfg.Broker.DialTimeout)
	}
}

func buildTLSConfig(cfg *config.Config) (*tls.Config, error) {
	if !cfg.Broker.TLSEnabled {
		return nil, nil
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.Broker.TLSCAFile != "" {
		ca, err := os.ReadFile(cfg.Broker.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(ca) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.Broker.TLSCAFile)
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.Broker.TLSCertFile != "" && cfg.Broker.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.Broker.TLSCertFile, cfg.Broker.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func splitFilters(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	filters := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			filters = append(filters, p)
		}
	}
	return filters
}

func subscribeFilters(ag *agent.Agent, filters []string) {
	for _, f := range filters {
		topic := f
		err := ag.Subscribe([]packets.Topic{{Name: topic, QoS: 1}}, agent.CommandInfo{
			BlockTime: agent.Forever,
			OnComplete: func(_ any, ret agent.ReturnInfo) {
				if ret.Err != nil {
					slog.Warn("Subscribe failed", "filter", topic, "error", ret.Err)
					return
				}
				slog.Info("Subscribed", "filter", topic, "return_codes", ret.ReturnCodes)
			},
		})
		if err != nil {
			slog.Warn("Subscribe submit failed", "filter", topic, "error", err)
		}
	}
}
