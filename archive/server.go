package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/carlmjohnson/versioninfo"
	"github.com/did-method-hcs/go-didevent"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
)

const shutdownTimeout = 10 * time.Second

// request body for POST /{did}/events
type AppendEventRequest struct {
	Operation string `json:"operation"`
	Event     string `json:"event"`
	// optional; defaults to the time of the request
	CreatedAt string `json:"createdAt,omitempty"`
}

// request body for POST /_decode
type DecodeEventRequest struct {
	Operation string `json:"operation"`
	Event     string `json:"event"`
}

// EventTreeResponse is one element of the GET /{did}/events/tree response
type EventTreeResponse struct {
	CID       string             `json:"cid"`
	Operation didevent.Operation `json:"operation"`
	CreatedAt string             `json:"createdAt"`
	Event     didevent.EventTree `json:"event"`
}

// Server holds the HTTP server and its dependencies
type Server struct {
	store  *GormEventStore
	addr   string
	logger *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(store *GormEventStore, addr string, logger *slog.Logger) *Server {
	return &Server{
		store:  store,
		addr:   addr,
		logger: logger.With("component", "server"),
	}
}

// Handler returns the routes served by the archive, without instrumentation
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /_health", s.handleHealth)
	mux.HandleFunc("POST /_decode", s.handleDecode)
	mux.HandleFunc("GET /{did}/events/tree", s.handleEventTrees)
	mux.HandleFunc("GET /{did}/events", s.handleEvents)
	mux.HandleFunc("POST /{did}/events", s.handleAppendEvent)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	return mux
}

// Run starts the HTTP server, blocking until ctx is done
func (s *Server) Run(ctx context.Context) error {
	return serveUntilDone(ctx, &http.Server{
		Addr:    s.addr,
		Handler: otelhttp.NewHandler(s.Handler(), ""),
	}, s.logger)
}

// ServeMetrics serves the prometheus registry on /metrics, blocking until ctx is done
func ServeMetrics(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return serveUntilDone(ctx, &http.Server{
		Addr:    addr,
		Handler: mux,
	}, logger.With("component", "metrics"))
}

func serveUntilDone(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("shutting down http server", "addr", srv.Addr)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CountDIDs(r.Context())
	if err != nil {
		writeJSONError(w, fmt.Sprintf("error counting DIDs: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "hello did event archive\n\narchived DIDs: %d\n", count)
}

// handleHealth handles GET /_health - returns version information
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"version": versioninfo.Short(),
	})
}

// writeJSONError writes a JSON error response
func writeJSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeJSON writes v without HTML escaping, so event trees match their canonical JSON
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

// handleEvents handles GET /{did}/events - returns the archived log entries, in append order
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	did := r.PathValue("did")

	entries, err := s.store.GetEntries(r.Context(), did)
	if err != nil {
		writeJSONError(w, fmt.Sprintf("error fetching event log: %v", err), http.StatusInternalServerError)
		return
	}
	if len(entries) == 0 {
		writeJSONError(w, fmt.Sprintf("DID not archived: %s", did), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// handleEventTrees handles GET /{did}/events/tree - returns the decoded event of each entry
func (s *Server) handleEventTrees(w http.ResponseWriter, r *http.Request) {
	did := r.PathValue("did")

	entries, err := s.store.GetEntries(r.Context(), did)
	if err != nil {
		writeJSONError(w, fmt.Sprintf("error fetching event log: %v", err), http.StatusInternalServerError)
		return
	}
	if len(entries) == 0 {
		writeJSONError(w, fmt.Sprintf("DID not archived: %s", did), http.StatusNotFound)
		return
	}

	events, err := didevent.ReplayEventLog(entries)
	if err != nil {
		// entries are validated before they are archived
		writeJSONError(w, fmt.Sprintf("error replaying event log: %v", err), http.StatusInternalServerError)
		return
	}

	resp := make([]EventTreeResponse, len(entries))
	for i, le := range entries {
		resp[i] = EventTreeResponse{
			CID:       le.CID,
			Operation: le.Operation,
			CreatedAt: le.CreatedAt,
			Event:     events[i].JSONTree(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAppendEvent handles POST /{did}/events - validates and archives a single event
func (s *Server) handleAppendEvent(w http.ResponseWriter, r *http.Request) {
	did := r.PathValue("did")
	ctx := r.Context()

	var req AppendEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	op, err := didevent.ParseOperation(req.Operation)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	createdAt := req.CreatedAt
	if createdAt == "" {
		createdAt = syntax.DatetimeNow().String()
	}

	le := didevent.LogEntry{
		DID:       did,
		Operation: op,
		Event:     req.Event,
		CreatedAt: createdAt,
	}
	le.CID = le.ComputeCID().String()

	err = didevent.CommitEntries(ctx, s.store, []*didevent.LogEntry{&le})
	switch {
	case err == nil:
	case errors.Is(err, didevent.ErrInvalidEntry):
		EventsRejectedCounter.Add(ctx, 1, metric.WithAttributes(SourceHTTP))
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, didevent.ErrDuplicateEntry):
		EventsRejectedCounter.Add(ctx, 1, metric.WithAttributes(SourceHTTP))
		writeJSONError(w, fmt.Sprintf("event already archived: %s", le.CID), http.StatusConflict)
		return
	default:
		s.logger.Error("failed to append event", "did", did, "error", err)
		writeJSONError(w, fmt.Sprintf("error appending event: %v", err), http.StatusInternalServerError)
		return
	}

	EventsAppendedCounter.Add(ctx, 1, metric.WithAttributes(SourceHTTP))
	s.logger.Info("appended event", "did", did, "cid", le.CID, "operation", le.Operation)
	writeJSON(w, http.StatusCreated, le)
}

// handleDecode handles POST /_decode - decodes a base64 event payload into its JSON tree
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	var req DecodeEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	op, err := didevent.ParseOperation(req.Operation)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ev, err := didevent.ParseEventBase64(op, req.Event)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, ev.JSONTree())
}
