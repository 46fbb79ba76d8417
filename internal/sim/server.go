package sim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Auto-Bike/frontend/internal/client"
	"github.com/Auto-Bike/frontend/internal/geo"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// TokenHeader is accepted alongside a bearer token and ?token=.
const TokenHeader = "X-Bikepilot-Token"

type Server struct {
	scenario    *Scenario
	fleet       *Fleet
	broadcaster *Broadcaster
	navigator   *Navigator
	token       string
	log         *logrus.Entry
	router      *mux.Router
}

func NewServer(sc *Scenario, log *logrus.Entry) *Server {
	bc := NewBroadcaster(log.WithField("part", "broadcast"))
	fleet := NewFleet(sc)
	s := &Server{
		scenario:    sc,
		fleet:       fleet,
		broadcaster: bc,
		navigator:   NewNavigator(fleet, bc, sc.NavStep, sc.NavLegs, log.WithField("part", "navigator")),
		token:       sc.Server.Token,
		log:         log,
		router:      mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) Fleet() *Fleet             { return s.fleet }
func (s *Server) Navigator() *Navigator     { return s.navigator }
func (s *Server) Broadcaster() *Broadcaster { return s.broadcaster }

// Handler serves the backend API.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(s.logRequests, s.requireToken)
	r.HandleFunc("/send-command", s.handleCommand).Methods(http.MethodPost)
	r.HandleFunc("/test-bike-connection/{id}", s.handleConnection).Methods(http.MethodGet)
	r.HandleFunc("/latest-gps/{id}", s.handleGPS).Methods(http.MethodGet)
	r.HandleFunc("/send-navigation", s.handleNavigation).Methods(http.MethodPost)
	r.HandleFunc("/bikes", s.handleBikes).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, client.ErrorBody{Detail: detail})
}

// problems maps fleet errors to the HTTP status and detail a client sees.
var problems = []struct {
	err    error
	status int
	detail string
}{
	{ErrUnknownBike, http.StatusNotFound, "Bike not found"},
	{ErrUnknownCommand, http.StatusBadRequest, "Unknown command"},
	{ErrRateLimited, http.StatusTooManyRequests, "Too many commands, slow down"},
	{ErrGPSUnavailable, http.StatusServiceUnavailable, "GPS data unavailable"},
	{ErrControllerDown, http.StatusServiceUnavailable, "Bike controller unreachable"},
}

func problem(err error) (int, string) {
	for _, p := range problems {
		if errors.Is(err, p.err) {
			return p.status, p.detail
		}
	}
	return http.StatusInternalServerError, "Internal error"
}

func writeProblem(w http.ResponseWriter, err error) {
	status, detail := problem(err)
	writeDetail(w, status, detail)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req client.CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Speed < 0 || req.Speed > 100 {
		writeDetail(w, http.StatusBadRequest, "Speed must be between 0 and 100")
		return
	}
	if req.TimeDuration != nil && *req.TimeDuration < 0 {
		writeDetail(w, http.StatusBadRequest, "time_duration must not be negative")
		return
	}

	id := s.fleet.Primary()
	bike, err := s.fleet.Command(id, req.Command, req.Speed)
	if err != nil {
		status, detail := problem(err)
		if errors.Is(err, ErrUnknownCommand) {
			detail = fmt.Sprintf("%s: %s", detail, req.Command)
		}
		s.log.WithError(err).WithField("command", req.Command).Debug("command rejected")
		writeDetail(w, status, detail)
		return
	}
	if req.Command != client.CommandStop {
		// Manual control takes over from navigation.
		s.navigator.Cancel(id)
	}

	s.broadcaster.Publish(client.MsgCommandAck, client.CommandAckPayload{
		BikeID: id, Command: req.Command, Speed: bike.Speed, Heading: bike.Heading,
	})
	resp := map[string]any{
		"message":  fmt.Sprintf("Command '%s' sent to %s", req.Command, id),
		"command":  req.Command,
		"speed":    bike.Speed,
		"heading":  bike.Heading,
		"position": bike.Position,
	}
	if req.TimeDuration != nil {
		resp["time_duration"] = *req.TimeDuration
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	status, err := s.fleet.Connect(id)
	if err != nil {
		writeProblem(w, err)
		return
	}
	writeJSON(w, http.StatusOK, client.ConnectionResponse{Status: status})
}

func (s *Server) handleGPS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	pos, err := s.fleet.ReadGPS(id)
	if err != nil {
		writeProblem(w, err)
		return
	}
	writeJSON(w, http.StatusOK, client.GPSFix{Latitude: pos.Lat, Longitude: pos.Lng})
}

func (s *Server) handleNavigation(w http.ResponseWriter, r *http.Request) {
	var req client.NavigationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	from := geo.Position{Lat: req.Start.Lat, Lng: req.Start.Lon}
	to := geo.Position{Lat: req.Destination.Lat, Lng: req.Destination.Lon}
	if !from.Valid() || !to.Valid() {
		writeDetail(w, http.StatusBadRequest, "Start and destination must be valid coordinates")
		return
	}

	run, err := s.navigator.Start(s.fleet.Primary(), from, to)
	if err != nil {
		writeProblem(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Navigation started",
		"run_id":  run.ID,
		"legs":    run.Total(),
	})
}

func (s *Server) handleBikes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.fleet.All())
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("ws upgrade failed")
		return
	}

	s.log.WithField("remote", r.RemoteAddr).Info("telemetry client connected")
	sub := s.broadcaster.add(conn)
	go func() {
		defer func() {
			s.broadcaster.remove(sub)
			s.log.WithField("remote", r.RemoteAddr).Info("telemetry client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) authorize(r *http.Request) bool {
	if s.token == "" {
		return true
	}
	if r.URL.Query().Get("token") == s.token {
		return true
	}
	if r.Header.Get(TokenHeader) == s.token {
		return true
	}
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.token
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorize(r) {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).Round(time.Microsecond),
		}).Debug("request")
	})
}

// Run serves on the scenario address and ticks the simulation until ctx is
// cancelled, then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.scenario.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.scenario.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.WithField("addr", ln.Addr().String()).Info("simulated backend listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return s.navigator.Run(ctx, s.scenario.Tick)
	})
	g.Go(func() error {
		<-ctx.Done()
		s.log.Info("shutting down")
		s.broadcaster.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
