package web

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"calmgr/internal/calendar"
	"calmgr/internal/config"
	"calmgr/internal/ics"
	appLog "calmgr/internal/log"
	"calmgr/internal/model"
)

// maxImportSize bounds an uploaded ICS body.
const maxImportSize = 16 << 20

// Server exposes the calendar registry over a JSON HTTP API.
type Server struct {
	mgr    *calendar.Manager
	auth   *config.BasicAuthConfig
	router chi.Router
}

// NewServer constructs a new Server. A nil or incomplete auth disables
// HTTP basic auth.
func NewServer(mgr *calendar.Manager, auth *config.BasicAuthConfig) *Server {
	s := &Server{
		mgr:    mgr,
		auth:   auth,
		router: chi.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "user", s.auth.Username)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.auth == nil {
		return false
	}
	// An empty user name or password disables auth.
	return s.auth.Username != "" && s.auth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.auth.Username
	password := s.auth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="calmgr", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api/calendars", func(r chi.Router) {
		r.Get("/", s.handleListCalendars)
		r.Post("/", s.handleCreateCalendar)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/events", s.handleListEvents)
			r.Post("/events", s.handleCreateEvent)
			r.Put("/timezone", s.handleSetTimeZone)
			r.Post("/copy", s.handleCopy)
			r.Get("/export.ics", s.handleExport)
			r.Post("/import", s.handleImport)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// calendarDTO is the JSON view of a calendar.
type calendarDTO struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
	Events   int    `json:"events"`
	Series   int    `json:"series"`
}

func (s *Server) handleListCalendars(w http.ResponseWriter, _ *http.Request) {
	out := make([]calendarDTO, 0)
	for _, name := range s.mgr.Names() {
		err := s.mgr.View(name, func(cal *calendar.Calendar) error {
			out = append(out, toCalendarDTO(name, cal))
			return nil
		})
		if err != nil {
			// Removed between Names and View.
			continue
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type createCalendarRequest struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

func (s *Server) handleCreateCalendar(w http.ResponseWriter, r *http.Request) {
	var req createCalendarRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	zone, err := calendar.LoadZone(req.Timezone)
	if err != nil {
		writeModelError(w, err)
		return
	}
	cal, err := s.mgr.Create(req.Name, zone)
	if err != nil {
		writeModelError(w, err)
		return
	}
	appLog.Info("calendar created", "name", req.Name, "timezone", zone.String())
	writeJSON(w, http.StatusCreated, toCalendarDTO(req.Name, cal))
}

// eventsResponse is the JSON response shape for the events listing.
type eventsResponse struct {
	Calendar string     `json:"calendar"`
	Timezone string     `json:"timezone"`
	From     string     `json:"from"`
	To       string     `json:"to"`
	Events   []eventDTO `json:"events"`
}

// handleListEvents returns the schedule of a calendar.
//
// GET /api/calendars/{name}/events?from=YYYY-MM-DD&to=YYYY-MM-DD
//
// from defaults to today in the calendar zone and to defaults to seven
// days after from.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	q := r.URL.Query()

	err := s.mgr.View(name, func(cal *calendar.Calendar) error {
		from := model.DateOf(time.Now().In(cal.TimeZone()))
		if v := q.Get("from"); v != "" {
			d, err := model.ParseDate(v)
			if err != nil {
				return err
			}
			from = d
		}
		to := from.AddDays(7)
		if v := q.Get("to"); v != "" {
			d, err := model.ParseDate(v)
			if err != nil {
				return err
			}
			to = d
		}

		events := cal.ScheduleInRange(from, to)
		resp := eventsResponse{
			Calendar: name,
			Timezone: cal.TimeZone().String(),
			From:     from.String(),
			To:       to.String(),
			Events:   make([]eventDTO, 0, len(events)),
		}
		for _, e := range events {
			resp.Events = append(resp.Events, toEventDTO(e))
		}
		writeJSON(w, http.StatusOK, resp)
		return nil
	})
	if err != nil {
		writeModelError(w, err)
	}
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req eventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	b, err := req.builder()
	if err != nil {
		writeModelError(w, err)
		return
	}

	if req.Repeats == nil {
		e, err := b.Build()
		if err != nil {
			writeModelError(w, err)
			return
		}
		if err := s.mgr.Update(name, func(cal *calendar.Calendar) error { return cal.AddEvent(e) }); err != nil {
			writeModelError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toEventDTO(e))
		return
	}

	series, err := req.Repeats.series(b)
	if err != nil {
		writeModelError(w, err)
		return
	}
	if err := s.mgr.Update(name, func(cal *calendar.Calendar) error { return cal.AddEventSeries(series) }); err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSeriesDTO(series))
}

type timezoneRequest struct {
	Timezone string `json:"timezone"`
}

func (s *Server) handleSetTimeZone(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req timezoneRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	zone, err := calendar.LoadZone(req.Timezone)
	if err != nil {
		writeModelError(w, err)
		return
	}
	cal, err := s.mgr.SetTimeZone(name, zone)
	if err != nil {
		writeModelError(w, err)
		return
	}
	appLog.Info("calendar time zone changed", "name", name, "timezone", zone.String())
	writeJSON(w, http.StatusOK, toCalendarDTO(name, cal))
}

type copyRequest struct {
	Target   string `json:"target"`
	From     string `json:"from"`
	To       string `json:"to"`
	NewStart string `json:"new_start"`
}

type copyResponse struct {
	Copied int `json:"copied"`
}

func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req copyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var dates [3]model.Date
	for i, v := range []string{req.From, req.To, req.NewStart} {
		d, err := model.ParseDate(v)
		if err != nil {
			writeModelError(w, err)
			return
		}
		dates[i] = d
	}

	n, err := s.mgr.CopyEvents(name, req.Target, dates[0], dates[1], dates[2])
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, copyResponse{Copied: n})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var buf bytes.Buffer
	if err := s.mgr.View(name, func(cal *calendar.Calendar) error { return ics.Export(&buf, cal) }); err != nil {
		writeModelError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var stats ics.ImportStats
	err = s.mgr.Update(name, func(cal *calendar.Calendar) error {
		var err error
		stats, err = ics.ImportBytes(cal, ics.Source{ID: "upload", Calendar: name}, body)
		return err
	})
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// statusFor maps calendar errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeModelError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		appLog.Error("api request failed", err)
	}
	writeError(w, status, err.Error())
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
