package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/odlevakp/enviro-pi/internal/migrate"
	"github.com/odlevakp/enviro-pi/internal/modules/telemetry/types"
)

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/scan-readings.sql
var scanReadingsSQL string

//go:embed sql/table-info.sql
var tableInfoSQL string

// TelemetryRepository is the append-only time-series store behind the sampler
// and the aggregation engine. Errors are always one of the types.Err* sentinels.
type TelemetryRepository interface {
	// Initialize creates the schema if needed and verifies its shape, retrying
	// transient lock and I/O failures with backoff.
	Initialize(ctx context.Context) error
	// Append persists one reading atomically, retrying transient lock and I/O
	// failures with backoff.
	Append(ctx context.Context, reading types.Reading) error
	// Scan yields readings with from <= epoch <= to in append order. Each call
	// runs a fresh query; breaking out of the loop releases it.
	Scan(ctx context.Context, from, to int64) iter.Seq2[types.Reading, error]
}

type Options struct {
	// QueryTimeout bounds one Scan. Zero means 10s.
	QueryTimeout time.Duration
	// RetryMax is the number of Initialize and Append retries after the first
	// attempt.
	RetryMax int
	// RetryInitialInterval and RetryMaxElapsed shape the exponential backoff.
	// Zero means 100ms and 30s.
	RetryInitialInterval time.Duration
	RetryMaxElapsed      time.Duration
	Logger               *slog.Logger
}

type repositoryImpl struct {
	db     *sql.DB
	opts   Options
	logger *slog.Logger

	// writeMu serializes writers inside this process; SQLite's own lock
	// serializes them across processes.
	writeMu sync.Mutex
}

func NewRepository(db *sql.DB, opts Options) TelemetryRepository {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 10 * time.Second
	}
	if opts.RetryMax < 0 {
		opts.RetryMax = 0
	}
	if opts.RetryInitialInterval <= 0 {
		opts.RetryInitialInterval = 100 * time.Millisecond
	}
	if opts.RetryMaxElapsed <= 0 {
		opts.RetryMaxElapsed = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &repositoryImpl{db: db, opts: opts, logger: logger.With("component", "store")}
}

// Initialize retries lock and I/O failures like Append does. A schema that
// does not match is permanent.
func (r *repositoryImpl) Initialize(ctx context.Context) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	attempt := 0
	op := func() error {
		attempt++
		err := migrate.Run(ctx, r.db, r.logger)
		if err == nil {
			err = r.verifySchema(ctx)
		}
		if err == nil {
			return nil
		}
		r.logger.Warn("initialize schema attempt failed",
			"attempt", attempt,
			"error", err,
		)
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(op, r.policy(ctx)); err != nil {
		return r.translate("initialize schema", err)
	}
	return nil
}

// Column types as declared by this service and by the legacy writer (epoch INT).
var expectedColumns = []struct {
	name  string
	types []string
}{
	{"epoch", []string{"INTEGER", "INT"}},
	{"humidity", []string{"REAL"}},
	{"pressure", []string{"REAL"}},
	{"temp_hum", []string{"REAL"}},
	{"temp_prs", []string{"REAL"}},
}

func (r *repositoryImpl) verifySchema(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx, tableInfoSQL)
	if err != nil {
		return fmt.Errorf("read table info: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Error("close table info rows", "error", err)
		}
	}()

	i := 0
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return fmt.Errorf("read table info: %w", err)
		}
		if i >= len(expectedColumns) {
			return fmt.Errorf("%w: sensehat has unexpected column %q", types.ErrSchema, name)
		}
		want := expectedColumns[i]
		if name != want.name || !containsFold(want.types, typ) {
			return fmt.Errorf("%w: sensehat column %d is %s %s, want %s %s",
				types.ErrSchema, i, name, typ, want.name, want.types[0])
		}
		i++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read table info: %w", err)
	}
	if i == 0 {
		return fmt.Errorf("%w: sensehat table missing", types.ErrSchema)
	}
	if i < len(expectedColumns) {
		return fmt.Errorf("%w: sensehat has %d columns, want %d", types.ErrSchema, i, len(expectedColumns))
	}
	return nil
}

func (r *repositoryImpl) Append(ctx context.Context, reading types.Reading) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	attempt := 0
	op := func() error {
		attempt++
		_, err := r.db.ExecContext(ctx, insertReadingSQL,
			reading.Epoch,
			reading.Humidity,
			reading.Pressure,
			reading.TempFromHumidity,
			reading.TempFromPressure,
		)
		if err == nil {
			return nil
		}
		r.logger.Warn("append reading attempt failed",
			"epoch", reading.Epoch,
			"attempt", attempt,
			"error", err,
		)
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(op, r.policy(ctx)); err != nil {
		return r.translate("append reading", err)
	}
	return nil
}

func (r *repositoryImpl) Scan(ctx context.Context, from, to int64) iter.Seq2[types.Reading, error] {
	return func(yield func(types.Reading, error) bool) {
		qctx, cancel := context.WithTimeout(ctx, r.opts.QueryTimeout)
		defer cancel()

		rows, err := r.db.QueryContext(qctx, scanReadingsSQL, from, to)
		if err != nil {
			yield(types.Reading{}, r.translate("scan readings", err))
			return
		}
		defer func() {
			if err := rows.Close(); err != nil {
				r.logger.Error("close readings rows", "error", err)
			}
		}()

		for rows.Next() {
			var (
				epoch                      int64
				hum, prs, tempHum, tempPrs sql.NullFloat64
			)
			if err := rows.Scan(&epoch, &hum, &prs, &tempHum, &tempPrs); err != nil {
				r.logger.Error("decode reading row", "error", err)
				yield(types.Reading{}, fmt.Errorf("scan readings: %w: undecodable row", types.ErrSchema))
				return
			}
			// Rows with a missing metric are left out, as SQL aggregates would.
			if !hum.Valid || !prs.Valid || !tempHum.Valid || !tempPrs.Valid {
				r.logger.Warn("skipping reading with null metric", "epoch", epoch)
				continue
			}
			rec := types.Reading{
				Epoch:            epoch,
				Humidity:         hum.Float64,
				Pressure:         prs.Float64,
				TempFromHumidity: tempHum.Float64,
				TempFromPressure: tempPrs.Float64,
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(types.Reading{}, r.translate("scan readings", err))
		}
	}
}

func (r *repositoryImpl) policy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.RetryInitialInterval
	b.MaxElapsedTime = r.opts.RetryMaxElapsed
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.opts.RetryMax)), ctx)
}

// translate logs the raw driver error and returns the taxonomy error in its
// place so that driver text never reaches callers.
func (r *repositoryImpl) translate(op string, err error) error {
	kind := classify(err)
	r.logger.Error(op+" failed", "kind", kind.Error(), "error", err)
	return fmt.Errorf("%s: %w", op, kind)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
