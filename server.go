package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"flyer-vessel-viz/integration"
	"flyer-vessel-viz/logging"
	"flyer-vessel-viz/metrics"
	"flyer-vessel-viz/navigation"
	"flyer-vessel-viz/nmea"
	"flyer-vessel-viz/storage"
	"flyer-vessel-viz/stream"
	"flyer-vessel-viz/units"
	"flyer-vessel-viz/vessel"
)

const defaultRecent = 50

// Server exposes the session state over HTTP.
type Server struct {
	logger     zerolog.Logger
	catalog    *units.Catalog
	aggregator *vessel.Aggregator
	mapper     *integration.DashboardMapper
	buffer     *storage.RingBuffer
	collector  *nmea.Collector
	hub        *stream.Hub
	metrics    *metrics.Metrics
	horizon    time.Duration
}

// Handler returns the routed handler wrapped in recovery, CORS and access
// logging middleware.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	route := func(path string, h http.HandlerFunc, methods ...string) {
		r.Handle(path, s.metrics.WrapHandler(path, h)).Methods(methods...)
	}

	route("/", s.handlePage, http.MethodGet)
	route("/api/state/raw", s.handleRawState, http.MethodGet)
	route("/api/state/raw/{key}", s.handleRawKey, http.MethodGet)
	route("/api/state/formatted", s.handleFormattedState, http.MethodGet)
	route("/api/table", s.handleTable, http.MethodGet)
	route("/api/table.csv", s.handleTableCSV, http.MethodGet)
	route("/api/dashboard", s.handleDashboard, http.MethodGet)
	route("/api/project", s.handleProject, http.MethodGet)
	route("/api/windbarb.svg", s.handleWindBarb, http.MethodGet)
	route("/api/status", s.handleStatus, http.MethodGet)
	route("/api/updates/recent", s.handleRecent, http.MethodGet)
	route("/api/session/reset", s.handleReset, http.MethodPost)
	r.HandleFunc("/api/stream", s.hub.ServeSSE).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.hub.ServeWS).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	var h http.Handler = r
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
	)(h)
	h = handlers.CombinedLoggingHandler(logging.Writer(logging.Component(s.logger, "http")), h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.logger}),
		handlers.PrintRecoveryStack(false),
	)(h)
	return h
}

type recoveryLogger struct {
	logger zerolog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error().Str("component", "http").Msg(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) dashboard() integration.Dashboard {
	return s.mapper.Map(s.aggregator.Snapshot())
}

// dashboardMessage is the frame pushed to stream clients.
func dashboardMessage(d integration.Dashboard) stream.Message {
	return stream.Message{Type: "dashboard", Data: d}
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, pageHTML)
}

func (s *Server) handleRawState(w http.ResponseWriter, r *http.Request) {
	snap := s.aggregator.Snapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"seq":        snap.Seq,
		"updated_at": snap.UpdatedAt,
		"state":      snap.Raw,
	})
}

func (s *Server) handleRawKey(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	rec, ok := s.aggregator.Snapshot().Raw.Get(key)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("no value for %q", key))
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleFormattedState(w http.ResponseWriter, r *http.Request) {
	snap := s.aggregator.Snapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"seq":        snap.Seq,
		"updated_at": snap.UpdatedAt,
		"state":      snap.Formatted,
	})
}

// tableOrder returns the order requested with ?order=a,b or the configured
// one.
func (s *Server) tableOrder(r *http.Request) []string {
	if v := r.URL.Query().Get("order"); v != "" {
		var order []string
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
		return order
	}
	return s.mapper.Order()
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	rows := s.aggregator.Snapshot().Formatted.Ordered(s.tableOrder(r))
	s.writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleTableCSV(w http.ResponseWriter, r *http.Request) {
	rows := s.aggregator.Snapshot().Formatted.Ordered(s.tableOrder(r))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="vessel.csv"`)
	if err := storage.WriteTable(w, rows); err != nil {
		s.logger.Error().Err(err).Msg("write table csv")
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.dashboard())
}

// handleProject projects a course line. Without lat/lng it uses the current
// position, course and speed.
func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var horizon time.Duration
	if v := q.Get("horizon"); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil || secs <= 0 {
			s.writeError(w, http.StatusBadRequest, "horizon must be a positive number of seconds")
			return
		}
		horizon = time.Duration(secs * float64(time.Second))
	}

	if q.Get("lat") == "" && q.Get("lng") == "" {
		raw := s.aggregator.Snapshot().Raw
		pos, ok := s.mapper.Position(raw)
		if !ok {
			s.writeJSON(w, http.StatusOK, map[string]any{"segment": nil})
			return
		}
		seg, ok := s.mapper.CourseLine(raw, pos, horizon)
		s.writeSegment(w, seg, ok)
		return
	}

	nums := make(map[string]float64, 4)
	for _, name := range []string{"lat", "lng", "bearing", "speed"} {
		v, err := strconv.ParseFloat(q.Get(name), 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("%s: expected a number", name))
			return
		}
		nums[name] = v
	}
	speedUnit := units.Knot
	if u := q.Get("speed_unit"); u != "" {
		speedUnit = units.Unit(u)
	}
	speed, err := s.catalog.Convert(nums["speed"], speedUnit, units.MeterPerSecond)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := navigation.Projector{Horizon: s.horizon}
	seg, ok := p.Project(navigation.LatLng{Lat: nums["lat"], Lng: nums["lng"]}, nums["bearing"], speed, horizon)
	s.writeSegment(w, seg, ok)
}

func (s *Server) writeSegment(w http.ResponseWriter, seg navigation.Segment, ok bool) {
	if !ok {
		s.writeJSON(w, http.StatusOK, map[string]any{"segment": nil})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"segment": seg})
}

func (s *Server) handleWindBarb(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var speed, direction float64
	if q.Get("speed") != "" {
		var err error
		if speed, err = strconv.ParseFloat(q.Get("speed"), 64); err != nil {
			s.writeError(w, http.StatusBadRequest, "speed: expected a number")
			return
		}
		if v := q.Get("direction"); v != "" {
			if direction, err = strconv.ParseFloat(v, 64); err != nil {
				s.writeError(w, http.StatusBadRequest, "direction: expected a number")
				return
			}
		}
	} else {
		wind, ok := s.mapper.Wind(s.aggregator.Snapshot().Raw)
		if !ok {
			s.writeError(w, http.StatusNotFound, "no wind data")
			return
		}
		speed, direction = wind.SpeedKnots, wind.DirectionDeg
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")
	fmt.Fprint(w, integration.WindBarbSVG(speed, direction))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.aggregator.Snapshot()
	resp := map[string]any{
		"status":         s.dashboard().Status,
		"seq":            snap.Seq,
		"keys":           len(snap.Raw),
		"buffer":         s.buffer.GetStats(),
		"stream_clients": s.hub.Clients(),
	}
	if s.collector != nil {
		resp["collector"] = s.collector.Stats().GetSnapshot()
		resp["connected"] = s.collector.IsConnected()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleRecent returns recent batches, newest first, or with ?since= the
// batches received since then, oldest first.
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "since: expected an RFC 3339 time")
			return
		}
		s.writeJSON(w, http.StatusOK, s.buffer.GetByTimeRange(since, time.Now()))
		return
	}

	n := defaultRecent
	if v := q.Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "n: expected a non-negative integer")
			return
		}
		n = parsed
	}
	s.writeJSON(w, http.StatusOK, s.buffer.GetRecent(n))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	snap := s.aggregator.Reset()
	s.buffer.Reset()
	s.logger.Info().Uint64("seq", snap.Seq).Msg("session reset")
	s.writeJSON(w, http.StatusOK, map[string]any{"seq": snap.Seq})
}
