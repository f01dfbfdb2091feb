package httpapi

import (
	"database/sql"
	"log/slog"
	"net/http"
)

func NewMux(db *sql.DB, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db, logger)
	return mux
}
