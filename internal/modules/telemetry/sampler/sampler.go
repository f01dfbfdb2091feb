package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odlevakp/enviro-pi/internal/modules/telemetry/types"
)

const (
	DefaultInterval      = 300 * time.Second
	defaultAppendTimeout = 30 * time.Second
	defaultSinkTimeout   = 5 * time.Second
)

// Source reads one measurement from a sensor.
type Source interface {
	Read(ctx context.Context) (types.Measurement, error)
}

// Store is the part of the time-series store the sampler writes to.
type Store interface {
	Initialize(ctx context.Context) error
	Append(ctx context.Context, reading types.Reading) error
}

// Sink receives every reading after it has been stored.
type Sink interface {
	PublishReading(ctx context.Context, reading types.Reading) error
}

type Options struct {
	Interval      time.Duration
	AppendTimeout time.Duration
	Sinks         []Sink
	Now           func() time.Time
	Logger        *slog.Logger
}

type Sampler struct {
	store  Store
	source Source
	opts   Options
	logger *slog.Logger
}

func New(store Store, source Source, opts Options) *Sampler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.AppendTimeout <= 0 {
		opts.AppendTimeout = defaultAppendTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{
		store:  store,
		source: source,
		opts:   opts,
		logger: logger.With("component", "sampler"),
	}
}

// Run initializes the store once and then samples every interval until ctx is
// cancelled, returning ctx.Err(). It returns early only when the store reports
// a schema error.
func (s *Sampler) Run(ctx context.Context) error {
	if err := s.store.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	s.logger.Info("sampler started", "interval", s.opts.Interval)

	for {
		start := s.opts.Now()
		if err := s.cycle(ctx); err != nil {
			return err
		}

		next := nextBoundary(start, s.opts.Now(), s.opts.Interval)
		timer := time.NewTimer(next.Sub(s.opts.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("sampler stopped")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// cycle takes one reading. Only a schema error is returned.
func (s *Sampler) cycle(ctx context.Context) error {
	m, err := s.source.Read(ctx)
	if err != nil {
		s.logger.Warn("sensor read failed", "error", err)
		return nil
	}
	reading := m.Rounded().At(s.opts.Now().Unix())

	// The append outlives cancellation so a reading taken before shutdown is
	// not lost.
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.AppendTimeout)
	err = s.store.Append(actx, reading)
	cancel()
	if err != nil {
		if errors.Is(err, types.ErrSchema) {
			s.logger.Error("append failed, stopping sampler", "epoch", reading.Epoch, "error", err)
			return fmt.Errorf("append reading: %w", err)
		}
		s.logger.Error("append failed", "epoch", reading.Epoch, "error", err)
		return nil
	}
	s.logger.Debug("reading stored",
		"epoch", reading.Epoch,
		"humidity", reading.Humidity,
		"pressure", reading.Pressure,
		"temp_hum", reading.TempFromHumidity,
	)

	for _, sink := range s.opts.Sinks {
		sctx, cancel := context.WithTimeout(ctx, defaultSinkTimeout)
		if err := sink.PublishReading(sctx, reading); err != nil {
			s.logger.Warn("publish reading failed", "epoch", reading.Epoch, "error", err)
		}
		cancel()
	}
	return nil
}

// nextBoundary returns the first start+k*interval (k >= 1) that lies after now.
func nextBoundary(start, now time.Time, interval time.Duration) time.Time {
	next := start.Add(interval)
	if !now.Before(next) {
		missed := now.Sub(next)/interval + 1
		next = next.Add(missed * interval)
	}
	return next
}
