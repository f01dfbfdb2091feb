package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/odlevakp/enviro-pi/internal/modules/telemetry/types"
)

func testDSN(path string, busy time.Duration) string {
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_txlock=immediate", path, busy.Milliseconds())
}

func setupTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sensehat.db")
	db, err := sql.Open("sqlite3", testDSN(path, 5*time.Second))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := db.Close(); closeErr != nil {
			t.Errorf("close db: %v", closeErr)
		}
	})
	return db, path
}

func newInitialized(t *testing.T) (TelemetryRepository, *sql.DB) {
	t.Helper()
	db, _ := setupTestDB(t)
	repo := NewRepository(db, Options{})
	if err := repo.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return repo, db
}

func collect(t *testing.T, repo TelemetryRepository, from, to int64) []types.Reading {
	t.Helper()
	var out []types.Reading
	for rec, err := range repo.Scan(context.Background(), from, to) {
		if err != nil {
			t.Fatalf("Scan(%d, %d): %v", from, to, err)
		}
		out = append(out, rec)
	}
	return out
}

func epochs(rs []types.Reading) []int64 {
	out := make([]int64, len(rs))
	for i, r := range rs {
		out[i] = r.Epoch
	}
	return out
}

func mustAppend(t *testing.T, repo TelemetryRepository, rs ...types.Reading) {
	t.Helper()
	for _, r := range rs {
		if err := repo.Append(context.Background(), r); err != nil {
			t.Fatalf("Append(%+v): %v", r, err)
		}
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	db, _ := setupTestDB(t)
	repo := NewRepository(db, Options{})
	for i := 0; i < 3; i++ {
		if err := repo.Initialize(context.Background()); err != nil {
			t.Fatalf("Initialize #%d: %v", i+1, err)
		}
	}
	mustAppend(t, repo, types.Reading{Epoch: 10, Humidity: 40})
	if got := collect(t, repo, 0, 100); len(got) != 1 {
		t.Fatalf("rows = %d; want 1", len(got))
	}
}

func TestInitialize_ConcurrentWithAppend(t *testing.T) {
	db, _ := setupTestDB(t)
	db.SetMaxOpenConns(4)

	// Separate repositories so the in-process write lock does not hide the
	// storage-level serialization.
	var wg sync.WaitGroup
	errs := make(chan error, 18)
	for i := 0; i < 6; i++ {
		repo := NewRepository(db, Options{})
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Initialize(context.Background())
		}()
	}
	wg.Wait()
	for i := 0; i < 6; i++ {
		repo := NewRepository(db, Options{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- repo.Initialize(context.Background())
		}()
		go func(epoch int64) {
			defer wg.Done()
			errs <- repo.Append(context.Background(), types.Reading{Epoch: epoch})
		}(int64(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("concurrent call: %v", err)
		}
	}
}

func TestInitialize_LegacyIntEpoch(t *testing.T) {
	db, _ := setupTestDB(t)
	if _, err := db.Exec(`CREATE TABLE sensehat(epoch INT, humidity REAL, pressure REAL, temp_hum REAL, temp_prs REAL)`); err != nil {
		t.Fatalf("legacy create: %v", err)
	}
	if err := NewRepository(db, Options{}).Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize on legacy table: %v", err)
	}
}

func TestInitialize_SchemaMismatch(t *testing.T) {
	tests := []struct {
		name string
		ddl  string
	}{
		{"wrong type", `CREATE TABLE sensehat(epoch TEXT, humidity REAL, pressure REAL, temp_hum REAL, temp_prs REAL)`},
		{"missing column", `CREATE TABLE sensehat(epoch INTEGER, humidity REAL, pressure REAL, temp_hum REAL)`},
		{"renamed column", `CREATE TABLE sensehat(ts INTEGER, humidity REAL, pressure REAL, temp_hum REAL, temp_prs REAL)`},
		{"extra column", `CREATE TABLE sensehat(epoch INTEGER, humidity REAL, pressure REAL, temp_hum REAL, temp_prs REAL, station TEXT)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _ := setupTestDB(t)
			if _, err := db.Exec(tt.ddl); err != nil {
				t.Fatalf("create: %v", err)
			}
			repo := NewRepository(db, Options{RetryMax: 5, RetryInitialInterval: time.Second})
			start := time.Now()
			err := repo.Initialize(context.Background())
			if !errors.Is(err, types.ErrSchema) {
				t.Fatalf("Initialize err = %v; want ErrSchema", err)
			}
			if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
				t.Errorf("Initialize took %v; a schema mismatch must not be retried", elapsed)
			}
		})
	}
}

func TestAppend_VisibleToLaterScan(t *testing.T) {
	repo, _ := newInitialized(t)
	r := types.Reading{Epoch: 1700000000, Humidity: 47.4, Pressure: 1008.12, TempFromHumidity: 23.4, TempFromPressure: 23.0}
	mustAppend(t, repo, r)

	got := collect(t, repo, r.Epoch, r.Epoch)
	if len(got) != 1 || got[0] != r {
		t.Fatalf("Scan = %+v; want [%+v]", got, r)
	}
}

func TestScan_InclusiveBounds(t *testing.T) {
	repo, _ := newInitialized(t)
	for _, e := range []int64{100, 199, 200, 250, 300, 301, 400} {
		mustAppend(t, repo, types.Reading{Epoch: e})
	}
	got := epochs(collect(t, repo, 200, 300))
	if fmt.Sprint(got) != "[200 250 300]" {
		t.Errorf("Scan(200, 300) epochs = %v; want [200 250 300]", got)
	}
}

func TestScan_AppendOrderNotEpochOrder(t *testing.T) {
	repo, _ := newInitialized(t)
	for _, e := range []int64{300, 100, 200, 100} {
		mustAppend(t, repo, types.Reading{Epoch: e})
	}
	got := epochs(collect(t, repo, 0, 1000))
	if fmt.Sprint(got) != "[300 100 200 100]" {
		t.Errorf("epochs = %v; want append order [300 100 200 100]", got)
	}
}

func TestScan_EmptyAndRestartable(t *testing.T) {
	repo, _ := newInitialized(t)
	if got := collect(t, repo, 0, 1000); len(got) != 0 {
		t.Fatalf("empty store scan = %v", got)
	}

	mustAppend(t, repo, types.Reading{Epoch: 5}, types.Reading{Epoch: 6})
	seq := repo.Scan(context.Background(), 0, 10)
	for pass := 0; pass < 2; pass++ {
		n := 0
		for _, err := range seq {
			if err != nil {
				t.Fatalf("pass %d: %v", pass, err)
			}
			n++
		}
		if n != 2 {
			t.Errorf("pass %d: rows = %d; want 2", pass, n)
		}
	}
}

func TestScan_BreakReleasesConnection(t *testing.T) {
	repo, db := newInitialized(t)
	db.SetMaxOpenConns(1)
	mustAppend(t, repo, types.Reading{Epoch: 1}, types.Reading{Epoch: 2}, types.Reading{Epoch: 3})

	for _, err := range repo.Scan(context.Background(), 0, 10) {
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		break
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := repo.Append(ctx, types.Reading{Epoch: 4}); err != nil {
		t.Fatalf("Append after early break: %v", err)
	}
}

func TestAppend_WithoutSchemaIsSchemaError(t *testing.T) {
	db, _ := setupTestDB(t)
	repo := NewRepository(db, Options{RetryMax: 3})

	err := repo.Append(context.Background(), types.Reading{Epoch: 1})
	if !errors.Is(err, types.ErrSchema) {
		t.Fatalf("Append err = %v; want ErrSchema", err)
	}
	if strings.Contains(err.Error(), "no such table") {
		t.Errorf("driver text leaked: %q", err.Error())
	}
}

func TestScan_ClosedDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.db")
	db, err := sql.Open("sqlite3", testDSN(path, time.Second))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	repo := NewRepository(db, Options{})
	if err := repo.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	_ = db.Close()

	for _, err := range repo.Scan(context.Background(), 0, 10) {
		if !errors.Is(err, types.ErrStorageUnavailable) {
			t.Fatalf("Scan err = %v; want ErrStorageUnavailable", err)
		}
		return
	}
	t.Fatal("Scan yielded nothing; want an error")
}

func TestScan_CancelledContext(t *testing.T) {
	repo, _ := newInitialized(t)
	mustAppend(t, repo, types.Reading{Epoch: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var gotErr error
	for _, err := range repo.Scan(ctx, 0, 10) {
		gotErr = err
		break
	}
	if !errors.Is(gotErr, types.ErrStorageUnavailable) {
		t.Fatalf("Scan err = %v; want ErrStorageUnavailable", gotErr)
	}
}

// lockWriter holds the SQLite write lock from a second connection pool.
func lockWriter(t *testing.T, path string) *sql.Tx {
	t.Helper()
	other, err := sql.Open("sqlite3", testDSN(path, time.Second))
	if err != nil {
		t.Fatalf("open second pool: %v", err)
	}
	t.Cleanup(func() { _ = other.Close() })
	tx, err := other.Begin()
	if err != nil {
		t.Fatalf("begin immediate: %v", err)
	}
	return tx
}

func TestAppend_RetriesWhileLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.db")
	db, err := sql.Open("sqlite3", testDSN(path, 20*time.Millisecond))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := NewRepository(db, Options{RetryMax: 20, RetryInitialInterval: 10 * time.Millisecond})
	if err := repo.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	tx := lockWriter(t, path)
	go func() {
		time.Sleep(150 * time.Millisecond)
		_ = tx.Commit()
	}()

	if err := repo.Append(context.Background(), types.Reading{Epoch: 42}); err != nil {
		t.Fatalf("Append while briefly locked: %v", err)
	}
	if got := collect(t, repo, 42, 42); len(got) != 1 {
		t.Fatalf("rows = %d; want 1", len(got))
	}
}

func TestAppend_GivesUpAsStorageUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stuck.db")
	db, err := sql.Open("sqlite3", testDSN(path, 10*time.Millisecond))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := NewRepository(db, Options{RetryMax: 2, RetryInitialInterval: 5 * time.Millisecond})
	if err := repo.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	tx := lockWriter(t, path)
	defer func() { _ = tx.Rollback() }()

	err = repo.Append(context.Background(), types.Reading{Epoch: 1})
	if !errors.Is(err, types.ErrStorageUnavailable) {
		t.Fatalf("Append err = %v; want ErrStorageUnavailable", err)
	}
	if strings.Contains(err.Error(), "locked") {
		t.Errorf("driver text leaked: %q", err.Error())
	}
}

func TestInitialize_RetriesWhileLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "startup.db")
	db, err := sql.Open("sqlite3", testDSN(path, 50*time.Millisecond))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	repo := NewRepository(db, Options{RetryMax: 20, RetryInitialInterval: 10 * time.Millisecond})

	// Another writer holds the lock for several busy timeouts.
	tx := lockWriter(t, path)
	released := make(chan struct{})
	go func() {
		defer close(released)
		time.Sleep(300 * time.Millisecond)
		_ = tx.Commit()
	}()

	if err := repo.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize while briefly locked: %v", err)
	}
	<-released
	mustAppend(t, repo, types.Reading{Epoch: 7, Humidity: 40})
	if got := collect(t, repo, 7, 7); len(got) != 1 {
		t.Fatalf("rows = %d; want 1", len(got))
	}
}

func TestInitialize_GivesUpAsStorageUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stuck-startup.db")
	db, err := sql.Open("sqlite3", testDSN(path, 10*time.Millisecond))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	repo := NewRepository(db, Options{RetryMax: 2, RetryInitialInterval: 5 * time.Millisecond})

	tx := lockWriter(t, path)
	defer func() { _ = tx.Rollback() }()

	err = repo.Initialize(context.Background())
	if !errors.Is(err, types.ErrStorageUnavailable) {
		t.Fatalf("Initialize err = %v; want ErrStorageUnavailable", err)
	}
}

func TestScan_SkipsRowsWithNullMetric(t *testing.T) {
	repo, db := newInitialized(t)
	mustAppend(t, repo, types.Reading{Epoch: 10, Humidity: 40, Pressure: 1000, TempFromHumidity: 20, TempFromPressure: 21})
	if _, err := db.Exec(`INSERT INTO sensehat (epoch, humidity, pressure, temp_hum, temp_prs) VALUES (20, NULL, 1001, 22, 23)`); err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO sensehat (epoch, humidity, pressure, temp_hum, temp_prs) VALUES (25, 41, 1002, 22, NULL)`); err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}
	mustAppend(t, repo, types.Reading{Epoch: 30, Humidity: 42, Pressure: 1003, TempFromHumidity: 24, TempFromPressure: 25})

	got := collect(t, repo, 0, 100)
	if want := []int64{10, 30}; fmt.Sprint(epochs(got)) != fmt.Sprint(want) {
		t.Fatalf("epochs = %v; want %v", epochs(got), want)
	}
	if got[1].Humidity != 42 || got[1].TempFromPressure != 25 {
		t.Errorf("second reading = %+v", got[1])
	}
}
