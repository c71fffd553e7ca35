package httpapi

import (
	"database/sql"
	"net"
	"net/http"
	"net/netip"
)

type DBHandler struct {
	DB *sql.DB // nil when the store is remote
}

// Checkpoint folds the SQLite WAL back into the database file and truncates
// it. Loopback callers only.
func (h DBHandler) Checkpoint(w http.ResponseWriter, r *http.Request) {
	if !isLoopback(r.RemoteAddr) {
		WriteError(w, r, http.StatusForbidden, "forbidden", "checkpoint is only allowed from loopback")
		return
	}
	if h.DB == nil {
		WriteError(w, r, http.StatusNotFound, "no_database", "no local database")
		return
	}

	var busy, walPages, moved int
	err := h.DB.QueryRowContext(r.Context(), `PRAGMA wal_checkpoint(TRUNCATE);`).Scan(&busy, &walPages, &moved)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "checkpoint_failed", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"busy":         busy != 0,
		"wal_pages":    walPages,
		"checkpointed": moved,
	})
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	if host == "localhost" {
		return true
	}
	addr, err := netip.ParseAddr(host)
	return err == nil && addr.IsLoopback()
}
