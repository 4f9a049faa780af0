// cmd/upspoller/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/tamzrod/ups-poller/internal/config"
	"github.com/tamzrod/ups-poller/internal/coordinator"
	"github.com/tamzrod/ups-poller/internal/httpserver"
	"github.com/tamzrod/ups-poller/internal/logging"
	"github.com/tamzrod/ups-poller/internal/poller"
	"github.com/tamzrod/ups-poller/internal/status"
	"github.com/tamzrod/ups-poller/internal/ups"
	"github.com/tamzrod/ups-poller/internal/writer"
	"github.com/tamzrod/ups-poller/internal/writer/mqtt"
)

func main() {
	cfgPath := flag.String("config", "", "path to config.yaml (optional)")
	envPath := flag.String("env", "", "path to a .env file (optional)")
	flag.Parse()

	boot := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	// --------------------
	// Load + validate config
	// --------------------

	if err := config.LoadEnvFile(*envPath); err != nil {
		boot.Fatal().Err(err).Msg("env file load failed")
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			boot.Fatal().Err(err).Msg("config load failed")
		}
	}

	applied, err := config.ApplyEnv(cfg)
	if err != nil {
		boot.Fatal().Err(err).Msg("env override failed")
	}

	if err := config.Validate(cfg); err != nil {
		boot.Fatal().Err(err).Msg("config validation failed")
	}
	config.Normalize(cfg)

	log, closeLog, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		boot.Fatal().Err(err).Msg("logger setup failed")
	}
	defer closeLog()

	if len(applied) > 0 {
		log.Info().Strs("vars", applied).Msg("environment overrides applied")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Build pipeline
	// --------------------

	// ---- poller ----
	p, err := poller.Build(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("poller build failed")
	}

	// ---- metrics ----
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := writer.NewMetrics(reg)

	// ---- coordinator ----
	coord, err := coordinator.New(p, coordinator.Options{
		Interval:   cfg.Poll.Interval(),
		StaleAfter: cfg.Poll.StaleAfter(),
		Logger:     logging.Component(log, "coordinator"),
		Observer:   metrics,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("coordinator build failed")
	}

	coord.Subscribe(func(s ups.Snapshot) { _ = metrics.WriteSnapshot(s) })
	coord.SubscribeStatus(func(s status.Snapshot) { _ = metrics.WriteStatus(s) })

	// ---- MQTT / Home Assistant (optional) ----
	shutdownMQTT := startMQTT(ctx, cfg, coord, logging.Component(log, "mqtt"))

	// ---- HTTP (optional) ----
	var srv *httpserver.Server
	if cfg.HTTP.Listen != "" {
		srv = httpserver.New(cfg.HTTP.Listen, coord, reg, logging.Component(log, "http"))
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				log.Error().Err(err).Msg("http server failed")
			}
		}()
	}

	log.Info().
		Str("endpoint", cfg.Source.Endpoint()).
		Int("unit_id", cfg.Source.UnitID).
		Dur("interval", cfg.Poll.Interval()).
		Bool("mqtt", cfg.MQTT.Enabled).
		Str("http", cfg.HTTP.Listen).
		Msg("ups poller starting")

	// --------------------
	// Run until signalled
	// --------------------

	if err := coord.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("coordinator stopped")
	}

	// flush pending deliveries before going offline
	coord.Close()
	shutdownMQTT()

	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("http shutdown failed")
		}
		cancel()
	}

	log.Info().Msg("ups poller stopped")
}

// startMQTT wires the Home Assistant and status writers when MQTT is enabled.
// The returned function publishes offline and disconnects.
func startMQTT(ctx context.Context, cfg *config.Config, coord *coordinator.Coordinator, log zerolog.Logger) func() {
	if !cfg.MQTT.Enabled {
		return func() {}
	}

	topics := writer.Topics{
		DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
		Base:            cfg.MQTT.BaseTopic,
		DeviceID:        cfg.Device.ID,
	}
	qos := byte(cfg.MQTT.QoS)

	var (
		ha *writer.HomeAssistant
		sw *writer.MQTTStatusWriter
	)

	client, err := mqtt.New(mqtt.Config{
		BrokerURL:   cfg.MQTT.BrokerURL(),
		ClientID:    cfg.MQTT.ClientID,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		WillTopic:   topics.Availability(),
		WillPayload: writer.PayloadOffline,
		WillQoS:     qos,
		OnConnect: func() {
			// re-assert everything on the next delivery
			ha.Reset()
			sw.Reset()
		},
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("mqtt client build failed")
	}

	ha = writer.NewHomeAssistant(client, writer.HAOptions{
		Topics: topics,
		Device: writer.DeviceInfo{
			Name:         cfg.Device.Name,
			Identifiers:  []string{cfg.Device.ID},
			Manufacturer: cfg.Device.Manufacturer,
			Model:        cfg.Device.Model,
		},
		Sensors: ups.Sensors(cfg.Device.ExtendedFields),
		QoS:     qos,
		Retain:  cfg.MQTT.Retain,
	})
	sw = writer.NewStatusWriter(client, topics, qos, cfg.MQTT.Retain)

	coord.Subscribe(func(s ups.Snapshot) {
		if err := ha.WriteSnapshot(s); err != nil && !errors.Is(err, writer.ErrOffline) {
			log.Warn().Err(err).Msg("snapshot publish failed")
		}
	})
	coord.SubscribeStatus(func(s status.Snapshot) {
		if err := sw.WriteStatus(s); err != nil && !errors.Is(err, writer.ErrOffline) {
			log.Warn().Err(err).Msg("status publish failed")
		}
	})

	go func() {
		if err := client.Connect(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("mqtt connect failed")
		}
	}()

	return func() {
		if client.Connected() {
			if err := sw.Offline(); err != nil {
				log.Warn().Err(err).Msg("offline publish failed")
			}
		}
		client.Close(250 * time.Millisecond)
	}
}
