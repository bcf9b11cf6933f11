package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wallet-scout/pkg/config"
	"github.com/wallet-scout/pkg/db"
)

// Freshness exposes job recency for SLA reporting.
type Freshness interface {
	LastRun() time.Time
}

// Dashboard serves the read-only JSON API. It never mutates pipeline
// state.
type Dashboard struct {
	store   *db.Store
	cfg     *config.Config
	monitor Freshness
	roller  Freshness
	port    int
}

func New(store *db.Store, cfg *config.Config, monitor, roller Freshness, port int) *Dashboard {
	return &Dashboard{store: store, cfg: cfg, monitor: monitor, roller: roller, port: port}
}

func (d *Dashboard) Run() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", cors(d.handleStatus))
	mux.HandleFunc("/api/watchlist", cors(d.handleWatchlist))
	mux.HandleFunc("/api/alerts", cors(d.handleAlerts))

	addr := fmt.Sprintf(":%d", d.port)
	log.Info().Str("addr", addr).Msg("🌐 dashboard started")
	return http.ListenAndServe(addr, mux)
}

func cors(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (d *Dashboard) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, _ := d.store.Counts()
	statsAt, _ := d.store.LastStatsUpdate()

	status := map[string]interface{}{
		"counts":           counts,
		"stats_updated_at": statsAt,
		"monitor_last_run": d.monitor.LastRun(),
		"stats_last_run":   d.roller.LastRun(),
		"chains":           d.cfg.Chains,
	}

	// SLA flags: the UI warns when a job has fallen behind.
	now := time.Now().UTC()
	status["monitor_stale"] = d.monitor.LastRun().IsZero() ||
		now.Sub(d.monitor.LastRun()) > 3*d.cfg.MonitorInterval
	status["stats_stale"] = d.roller.LastRun().IsZero() ||
		now.Sub(d.roller.LastRun()) > 3*d.cfg.StatsInterval

	writeJSON(w, status)
}

func (d *Dashboard) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	type entryView struct {
		Chain   string  `json:"chain"`
		Wallet  string  `json:"wallet"`
		Score   float64 `json:"score"`
		Status  string  `json:"status"`
		AddedAt string  `json:"added_at"`
	}

	var result []entryView
	for _, chain := range d.cfg.Chains {
		entries, err := d.store.Watchlist(chain, db.WatchStatusActive)
		if err != nil {
			continue
		}
		for _, e := range entries {
			result = append(result, entryView{
				Chain:   string(e.Chain),
				Wallet:  e.Wallet,
				Score:   e.Score,
				Status:  e.Status,
				AddedAt: e.AddedAt.Format(time.RFC3339),
			})
		}
	}
	writeJSON(w, result)
}

func (d *Dashboard) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	alerts, err := d.store.RecentAlerts(limit)
	if err != nil {
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, alerts)
}
