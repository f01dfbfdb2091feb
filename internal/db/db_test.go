package db

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/odlevakp/enviro-pi/internal/config"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{
			name: "explicit dsn wins",
			cfg:  config.Config{SQLiteDSN: "file::memory:?cache=shared", SQLitePath: "ignored.db"},
			want: "file::memory:?cache=shared",
		},
		{
			name: "plain path",
			cfg:  config.Config{SQLitePath: "sensehat.db", SQLiteBusyTimeout: 5 * time.Second},
			want: "file:sensehat.db?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate",
		},
		{
			name: "file uri with params",
			cfg:  config.Config{SQLitePath: "file:sensehat.db?mode=rwc", SQLiteBusyTimeout: 250 * time.Millisecond},
			want: "file:sensehat.db?mode=rwc&_busy_timeout=250&_journal_mode=WAL&_txlock=immediate",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildDSN(tt.cfg)
			if err != nil {
				t.Fatalf("buildDSN() err = %v", err)
			}
			if got != tt.want {
				t.Errorf("buildDSN() = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestBuildDSN_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	cfg := config.Config{SQLitePath: filepath.Join(dir, "sensehat.db"), SQLiteBusyTimeout: time.Second}

	dsn, err := buildDSN(cfg)
	if err != nil {
		t.Fatalf("buildDSN() err = %v", err)
	}
	if !strings.HasPrefix(dsn, "file:"+dir) {
		t.Errorf("dsn = %q", dsn)
	}
}

func TestOpen(t *testing.T) {
	for _, trace := range []bool{false, true} {
		name := "plain"
		if trace {
			name = "traced"
		}
		t.Run(name, func(t *testing.T) {
			cfg := config.Config{
				SQLiteDriver:       "sqlite3",
				SQLitePath:         filepath.Join(t.TempDir(), "sensehat.db"),
				SQLiteMaxOpenConns: 2,
				SQLiteMaxIdleConns: 1,
				SQLiteBusyTimeout:  time.Second,
				SQLiteTrace:        trace,
			}
			conn, err := Open(cfg, nil)
			if err != nil {
				t.Fatalf("Open() err = %v", err)
			}
			defer func() {
				if err := Close(conn); err != nil {
					t.Errorf("Close() err = %v", err)
				}
			}()

			var mode string
			if err := conn.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
				t.Fatalf("journal_mode: %v", err)
			}
			if mode != "wal" {
				t.Errorf("journal_mode = %q; want wal", mode)
			}
		})
	}
}

func TestClose_Nil(t *testing.T) {
	if err := Close(nil); err != nil {
		t.Errorf("Close(nil) = %v; want nil", err)
	}
}
