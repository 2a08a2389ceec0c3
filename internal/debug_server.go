// Package internal hosts operational plumbing shared by the binaries:
// the debug endpoints and the logger setup.
package internal

import (
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

// InspectRow is one decoded database record, rendered by the inspect
// page. The mapper decides how to decode each namespace.
type InspectRow struct {
	Key       string
	Namespace string
	Timestamp string
	EntityID  string
	Detail    string
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() map[string]any

type pageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// DebugServer exposes the read-only operational endpoints: process
// stats as JSON and a raw database browser as HTML. Meant for local
// operation, never for the public surface.
type DebugServer struct {
	log    *slog.Logger
	db     *badger.DB
	mapper RowMapper
	stats  StatsProvider
	tmpl   *template.Template
}

func NewDebugServer(log *slog.Logger, db *badger.DB, mapper RowMapper, stats StatsProvider) *DebugServer {
	if mapper == nil {
		mapper = DefaultMapper
	}
	return &DebugServer{
		log:    log,
		db:     db,
		mapper: mapper,
		stats:  stats,
		tmpl:   template.Must(template.ParseFS(templatesFS, "inspect.html")),
	}
}

func (s *DebugServer) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /debug/stats", s.handleStats)
	mux.HandleFunc("GET /debug/inspect", s.handleInspect)
}

func (s *DebugServer) handleStats(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{"at": time.Now().UTC()}
	if s.stats != nil {
		for k, v := range s.stats() {
			payload[k] = v
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *DebugServer) handleInspect(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = "msg:"
	}

	data := pageData{Prefix: prefix, Stats: make(map[string]any)}
	if s.stats != nil {
		data.Stats = s.stats()
	}

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			_ = item.Value(func(val []byte) error {
				data.Items = append(data.Items, s.mapper(string(item.Key()), val))
				return nil
			})
		}
		return nil
	})
	if err != nil {
		s.log.Error("Inspect scan failed", "prefix", prefix, "error", err)
		http.Error(w, "scan failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = s.tmpl.Execute(w, data)
}

// DefaultMapper renders any record from its key alone. Message keys
// carry namespace, room, nanosecond timestamp and message ID.
func DefaultMapper(key string, val []byte) InspectRow {
	parts := strings.Split(key, ":")
	row := InspectRow{
		Key:       key,
		Namespace: "default",
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}

	if len(parts) >= 4 {
		row.Namespace = parts[0]
		if tsNano, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			row.Timestamp = time.Unix(0, tsNano).UTC().Format("15:04:05")
		}
		row.EntityID = parts[3]
		if len(row.EntityID) > 8 {
			row.EntityID = row.EntityID[:8]
		}
	} else if len(parts) >= 2 {
		row.Namespace = parts[0]
		row.EntityID = parts[1]
	}
	return row
}
