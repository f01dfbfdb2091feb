package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odlevakp/enviro-pi/internal/config"
	"github.com/odlevakp/enviro-pi/internal/db"
	"github.com/odlevakp/enviro-pi/internal/httpapi"
	"github.com/odlevakp/enviro-pi/internal/modules/telemetry"
	"github.com/odlevakp/enviro-pi/internal/modules/telemetry/aggregation"
	"github.com/odlevakp/enviro-pi/internal/modules/telemetry/repository"
	"github.com/odlevakp/enviro-pi/internal/modules/telemetry/sampler"
	"github.com/odlevakp/enviro-pi/internal/mqtt"
	"github.com/odlevakp/enviro-pi/internal/sensor"
)

const shutdownTimeout = 10 * time.Second

// Run starts the sampler and, unless disabled, the JSON API, and blocks until
// ctx is cancelled or one of them fails.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"sqlitePath", cfg.SQLitePath,
		"sqliteMaxOpenConns", cfg.SQLiteMaxOpenConns,
		"sqliteBusyTimeout", cfg.SQLiteBusyTimeout,
		"sampleInterval", cfg.SampleInterval,
		"sensorDriver", cfg.SensorDriver,
		"mqttBroker", cfg.MQTTBroker,
		"mqttTopic", cfg.MQTTTopic,
		"displayTZ", cfg.DisplayLocation.String(),
	)

	dbConn, err := db.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()

	store := repository.NewRepository(dbConn, repository.Options{
		QueryTimeout: cfg.QueryTimeout,
		RetryMax:     cfg.StoreRetryMax,
		Logger:       logger,
	})

	var mqttClient *mqtt.Client
	if cfg.MQTTEnabled() {
		mqttClient = mqtt.NewClient(cfg, logger)
	}

	// The mqtt sensor driver installs its handler here, before Connect.
	source, err := sensor.Open(cfg, mqttClient, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := source.Close(); closeErr != nil {
			logger.Error("sensor close", "error", closeErr)
		}
	}()

	var sinks []sampler.Sink
	if mqttClient != nil {
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err = mqttClient.Connect(connectCtx)
		connectCancel()
		if err != nil {
			// Auto-reconnect keeps trying in the background.
			logger.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
		defer mqttClient.Disconnect()

		// Republishing readings that came from the broker would echo them back.
		if cfg.SensorDriver != config.SensorDriverMQTT {
			sinks = append(sinks, mqttClient)
		}
	}

	smp := sampler.New(store, source, sampler.Options{
		Interval: cfg.SampleInterval,
		Sinks:    sinks,
		Logger:   logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return smp.Run(gctx) })

	if cfg.HTTPAddr != "" {
		engine := aggregation.NewEngine(store, aggregation.Options{Location: cfg.DisplayLocation})
		mux := httpapi.NewMux(dbConn, logger)
		telemetry.RegisterFeature(mux, engine, source, logger)
		srv := httpapi.NewServer(cfg, mux, logger)

		g.Go(func() error {
			logger.Info("http listening", "addr", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			logger.Info("http shutting down")
			return srv.Shutdown(shutdownCtx)
		})
	} else {
		logger.Info("http disabled")
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
