package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"apptboard/internal/annotate"
	"apptboard/internal/calendar"
	"apptboard/internal/config"
	"apptboard/internal/feed"
	appLog "apptboard/internal/log"
	"apptboard/internal/render"
)

// Server exposes the rendered board over HTTP: JSON API, ICS feed,
// snapshot preview and the embedded board UI.
type Server struct {
	cfg      *config.Config
	feed     *feed.Feed
	store    *annotate.Store
	assetURL func(string) string
	loc      *time.Location
	mux      *http.ServeMux
	now      func() time.Time

	// Rendered /api/appointments response. Dropped whenever the feed applies
	// a snapshot or an annotation changes, rebuilt on the next request.
	boardMu    sync.RWMutex
	boardCache *boardResponse
	boardGen   uint64

	unsubscribe []func()
}

// embeddedStatic contains the board UI (index.html, app.js, app.css).
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a Server and subscribes it to feed and store
// changes. Call Close to drop the subscriptions.
func NewServer(cfg *config.Config, f *feed.Feed, store *annotate.Store, assetURL func(string) string) *Server {
	s := &Server{
		cfg:      cfg,
		feed:     f,
		store:    store,
		assetURL: assetURL,
		loc:      cfg.Location(),
		mux:      http.NewServeMux(),
		now:      time.Now,
	}
	s.unsubscribe = append(s.unsubscribe,
		f.Subscribe(func(feed.Snapshot) { s.invalidate() }),
		store.Subscribe(func(annotate.Set) { s.invalidate() }),
	)
	s.registerRoutes()
	return s
}

// Close removes the feed and store subscriptions.
func (s *Server) Close() {
	for _, fn := range s.unsubscribe {
		fn()
	}
	s.unsubscribe = nil
}

// Handler returns the fully wrapped http.Handler.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	h = withAccessLog(h)
	h = withRequestID(h)
	return otelhttp.NewHandler(h, "apptboard")
}

// Run serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/appointments", s.handleAppointments)
	s.mux.HandleFunc("GET /api/annotations", s.handleAnnotations)
	s.mux.HandleFunc("POST /api/annotations/{id}/strikeout", s.handleStrikeout)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)

	// Everything else falls back to the embedded board UI.
	s.mux.Handle("/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// boardResponse is the JSON response shape for /api/appointments.
type boardResponse struct {
	Appointments    []render.ViewModel `json:"appointments"`
	Count           int                `json:"count"`
	EmptyMessage    string             `json:"empty_message,omitempty"`
	RecordErrors    []string           `json:"record_errors"`
	LastError       string             `json:"last_error,omitempty"`
	Stale           bool               `json:"stale"`
	FetchedAt       *time.Time         `json:"fetched_at,omitempty"`
	DisplayTimeZone string             `json:"display_timezone"`
}

// annotationsResponse maps appointment ids (as strings) to annotations.
type annotationsResponse struct {
	Annotations map[string]annotate.Annotation `json:"annotations"`
}

type strikeoutResponse struct {
	ID         int64               `json:"id"`
	Annotation annotate.Annotation `json:"annotation"`
}

type refreshResponse struct {
	Seq       uint64 `json:"seq"`
	Count     int    `json:"count"`
	Rejected  int    `json:"rejected"`
	Stale     bool   `json:"stale"`
	Discarded bool   `json:"discarded,omitempty"`
	Error     string `json:"error,omitempty"`
}

type calendarResponse struct {
	Days            []calendar.Day `json:"days"`
	WeekStart       string         `json:"week_start"`
	DisplayTimeZone string         `json:"display_timezone"`
}

// handleAppointments returns the rendered board. It always answers 200
// with the last good list; fetch problems surface as last_error/stale.
func (s *Server) handleAppointments(w http.ResponseWriter, _ *http.Request) {
	s.boardMu.RLock()
	bc, gen := s.boardCache, s.boardGen
	s.boardMu.RUnlock()
	if bc != nil {
		writeJSON(w, http.StatusOK, bc)
		return
	}

	resp := s.buildBoard()

	// Don't cache a board built from data invalidated meanwhile.
	s.boardMu.Lock()
	if s.boardGen == gen {
		s.boardCache = resp
	}
	s.boardMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) buildBoard() *boardResponse {
	snap := s.feed.Snapshot()
	vms := render.Render(snap.Appointments, s.store.Current(), render.Options{
		Location: s.loc,
		AssetURL: s.assetURL,
	})

	resp := &boardResponse{
		Appointments:    vms,
		Count:           len(vms),
		RecordErrors:    make([]string, 0, len(snap.RecordErrors)),
		Stale:           snap.Stale,
		DisplayTimeZone: s.loc.String(),
	}
	if len(vms) == 0 {
		resp.EmptyMessage = render.EmptyState
	}
	for _, err := range snap.RecordErrors {
		resp.RecordErrors = append(resp.RecordErrors, err.Error())
	}
	if snap.LastError != nil {
		resp.LastError = snap.LastError.Error()
	}
	if !snap.FetchedAt.IsZero() {
		t := snap.FetchedAt
		resp.FetchedAt = &t
	}
	return resp
}

func (s *Server) invalidate() {
	s.boardMu.Lock()
	s.boardCache = nil
	s.boardGen++
	s.boardMu.Unlock()
}

func (s *Server) handleAnnotations(w http.ResponseWriter, _ *http.Request) {
	set := s.store.Current()
	out := annotationsResponse{Annotations: make(map[string]annotate.Annotation, set.Len())}
	for id, a := range set.Map() {
		out.Annotations[strconv.FormatInt(id, 10)] = a
	}
	writeJSON(w, http.StatusOK, out)
}

// handleStrikeout toggles the struck flag of an appointment, or sets it
// when ?value=true|false is given. The id does not have to be in the
// current list.
//
// POST /api/annotations/{id}/strikeout[?value=true|false]
func (s *Server) handleStrikeout(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	reducer := annotate.Toggle(id)
	if v := r.URL.Query().Get("value"); v != "" {
		struck, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "value must be true or false")
			return
		}
		reducer = annotate.Strike(id, struck)
	}

	set := s.store.Dispatch(reducer)
	ann, _ := set.Get(id)
	appLog.Debug("strikeout changed", "id", id, "struck", ann.Struck)
	writeJSON(w, http.StatusOK, strikeoutResponse{ID: id, Annotation: ann})
}

// handleRefresh runs one refresh immediately.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.feed.Refresh(r.Context())
	resp := refreshResponse{
		Seq:      snap.Seq,
		Count:    len(snap.Appointments),
		Rejected: len(snap.RecordErrors),
		Stale:    snap.Stale,
	}
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, feed.ErrStale):
		resp.Discarded = true
		writeJSON(w, http.StatusOK, resp)
	default:
		resp.Error = err.Error()
		writeJSON(w, http.StatusBadGateway, resp)
	}
}

// handleCalendar returns the day grid for the calendar view.
//
// GET /api/calendar?days=7
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	days := parseIntDefault(r.URL.Query().Get("days"), 7)
	if days <= 0 {
		days = 7
	}

	grid, err := calendar.Grid(s.now().In(s.loc), days, calendar.ParseWeekStart(s.cfg.WeekStart), s.feed.Snapshot().Appointments)
	if err != nil {
		appLog.Error("api calendar: grid failed", err)
		writeError(w, http.StatusInternalServerError, "failed to build calendar")
		return
	}
	writeJSON(w, http.StatusOK, calendarResponse{
		Days:            grid,
		WeekStart:       s.cfg.WeekStart,
		DisplayTimeZone: s.loc.String(),
	})
}

func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	body := calendar.Export(s.feed.Snapshot().Appointments, s.store.Current(), calendar.ExportOptions{
		UIDDomain: hostOnly(r.Host),
		Now:       s.now(),
	})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// handlePreview serves the last board snapshot written by `apptboard snapshot`.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.cfg.SnapshotPath == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, s.cfg.SnapshotPath)
}

// staticFileServer serves the embedded board UI from internal/web/static.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Unknown /api/* paths must 404 as JSON clients expect, never HTML.
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func hostOnly(hostport string) string {
	if i := strings.LastIndexByte(hostport, ':'); i > 0 && !strings.Contains(hostport[i:], "]") {
		hostport = hostport[:i]
	}
	if hostport == "" {
		return "apptboard"
	}
	return hostport
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
