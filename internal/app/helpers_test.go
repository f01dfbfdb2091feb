package app

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/odlevakp/enviro-pi/internal/config"
)

func seedBadTable(cfg config.Config) error {
	conn, err := sql.Open("sqlite3", cfg.SQLiteDSN)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Exec(`CREATE TABLE sensehat(epoch TEXT, humidity TEXT)`)
	return err
}
