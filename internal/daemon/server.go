package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/RevCBH/vigil/internal/event"
	"github.com/RevCBH/vigil/internal/source"
)

// ingestPayload is the webhook push body: one raw item, minus the source,
// which comes from the URL.
type ingestPayload struct {
	ExternalID string         `json:"external_id"`
	ParentID   string         `json:"parent_id,omitempty"`
	ItemType   string         `json:"item_type"`
	Actor      string         `json:"actor"`
	TargetRef  string         `json:"target_ref"`
	Text       string         `json:"text"`
	ObservedAt time.Time      `json:"observed_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// router builds the HTTP surface: webhook ingest, health, metrics.
func (d *Daemon) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", d.handleHealthz)
	r.Method("GET", "/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	r.Post("/webhooks/{source}", d.handleWebhook)

	return r
}

func (d *Daemon) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWebhook pushes one item through the same dedup gate as polling: a
// webhook delivery and a later poll of the same item yield one event.
func (d *Daemon) handleWebhook(w http.ResponseWriter, r *http.Request) {
	// Refuse new deliveries once the bus has closed: a delivery ingested
	// now would mark its dedup key with no dispatcher left to serve it.
	select {
	case <-d.bus.Done():
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "shutting down"})
		return
	default:
	}

	src := event.Source(chi.URLParam(r, "source"))
	monitor, ok := d.monitors[src]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown source"})
		return
	}

	var payload ingestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if payload.ExternalID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "external_id is required"})
		return
	}
	if payload.ObservedAt.IsZero() {
		payload.ObservedAt = time.Now()
	}

	emitted, err := monitor.Ingest(r.Context(), source.RawItem{
		Source:     src,
		ExternalID: payload.ExternalID,
		ParentID:   payload.ParentID,
		ItemType:   source.ItemType(payload.ItemType),
		Actor:      payload.Actor,
		TargetRef:  payload.TargetRef,
		Text:       payload.Text,
		ObservedAt: payload.ObservedAt,
		Payload:    payload.Payload,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, event.ErrBusClosed) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "shutting down"})
			return
		}
		d.log.Warn("webhook ingest failed",
			zap.String("source", string(src)),
			zap.String("external_id", payload.ExternalID),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ingest failed"})
		return
	}

	status := "accepted"
	if !emitted {
		status = "ignored"
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": status})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
