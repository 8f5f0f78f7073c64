package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"slotrouter/pkg/cluster"
	"slotrouter/pkg/command"
	"slotrouter/pkg/metrics"
	"slotrouter/pkg/resp"
	"slotrouter/pkg/routing"
	"slotrouter/pkg/slot"
)

const (
	contentTypeJSON        = "application/json"
	defaultHTTPPort        = "8080"
	defaultShutdownTimeout = time.Second * 5
	maxBodyBytes           = 1 << 20
)

// Server exposes the routing decisions for a topology over HTTP.
type Server struct {
	topology          *cluster.Topology
	metrics           *metrics.Registry
	httpServer        *http.Server
	readHeaderTimeout time.Duration
	URL               string
	addr              string
}

// NewServer creates a new server instance. A nil registry gets a private one.
func NewServer(topology *cluster.Topology, registry *metrics.Registry, port string, readHeaderTimeout time.Duration) *Server {
	if registry == nil {
		registry = metrics.NewRegistry()
	}
	if port == "" {
		port = defaultHTTPPort
	}
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = time.Second
	}
	return &Server{
		topology:          topology,
		metrics:           registry,
		readHeaderTimeout: readHeaderTimeout,
		URL:               "http://localhost:" + port,
		addr:              ":" + port,
	}
}

// Start starts the server
func (s *Server) Start() error {
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}
	return nil
}

// createRouter builds chi router
func (s *Server) createRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/api/slot", s.handleSlot)
	r.Post("/api/route", s.handleRoute)
	r.Post("/api/plan", s.handlePlan)
	r.Post("/api/combine", s.handleCombine)

	r.Get("/api/topology", s.handleGetTopology)
	r.Put("/api/topology", s.handlePutTopology)
	r.Delete("/api/topology", s.handleClearTopology)

	return r
}

// Handler returns the API routes without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.createRouter()
}

func (s *Server) startHTTPServer() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.createRouter(),
		ReadHeaderTimeout: s.readHeaderTimeout,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("HTTP server started", "addr", s.URL)
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Error encoding response", "error", err)
	}
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Invalid JSON body: "+err.Error()))
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, NewOKResponse())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap := s.topology.Snapshot()
	s.metrics.SetGauge("slotrouter_topology_epoch", nil, float64(s.topology.Epoch()))
	s.metrics.SetGauge("slotrouter_topology_masters", nil, float64(len(snap.Masters())))

	s.metrics.Handler().ServeHTTP(w, r)
}

func (s *Server) handleSlot(w http.ResponseWriter, r *http.Request) {
	if !r.URL.Query().Has("key") {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing key"))
		return
	}
	key := r.URL.Query().Get("key")

	resp := SlotResponse{Key: key, Slot: slot.ForKey([]byte(key))}
	if tag, ok := slot.HashTag([]byte(key)); ok {
		resp.HashTag = string(tag)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) readCommand(w http.ResponseWriter, r *http.Request) (*command.Cmd, bool) {
	var req CommandRequest
	if !s.readJSON(w, r, &req) {
		return nil, false
	}
	cmd, err := decodeCommand(req)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse(err.Error()))
		return nil, false
	}
	return cmd, true
}

func decodeCommand(req CommandRequest) (*command.Cmd, error) {
	switch {
	case req.RESP != "" && len(req.Args) > 0:
		return nil, errors.New("args and resp are mutually exclusive")
	case req.RESP != "":
		v, err := decodeRESP(req.RESP)
		if err != nil {
			return nil, fmt.Errorf("command: %w", err)
		}
		cmd, ok := command.FromValue(v)
		if !ok {
			return nil, errors.New("command must be a non-empty array of bulk strings")
		}
		return cmd, nil
	case len(req.Args) == 0:
		return nil, errors.New("missing command arguments")
	}

	args := make([][]byte, len(req.Args))
	for i, a := range req.Args {
		args[i] = []byte(a)
	}
	return command.FromArgs(args), nil
}

// decodeRESP decodes exactly one value from raw.
func decodeRESP(raw string) (resp.Value, error) {
	v, n, err := resp.Decode([]byte(raw))
	if err != nil {
		return resp.Value{}, err
	}
	if n != len(raw) {
		return resp.Value{}, fmt.Errorf("%d trailing bytes", len(raw)-n)
	}
	return v, nil
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	cmd, ok := s.readCommand(w, r)
	if !ok {
		return
	}

	info, ok := routing.ForRoutable(cmd)
	if !ok {
		s.metrics.IncCounter("slotrouter_route_total", map[string]string{"kind": "unroutable"}, 1)
		s.writeJSON(w, http.StatusUnprocessableEntity, NewErrorResponse(
			fmt.Sprintf("command %q cannot be routed automatically", cmd.String())))
		return
	}

	s.metrics.IncCounter("slotrouter_route_total", map[string]string{"kind": info.Kind.String()}, 1)

	snap := s.topology.Snapshot()
	resp := RouteResponse{
		Routing:   s.routingView(snap, info),
		Addresses: snap.Addresses(info),
		Epoch:     s.topology.Epoch(),
	}
	if resp.Addresses == nil {
		resp.Addresses = []string{}
	}
	if policy, ok := routing.PolicyFor(cmd); ok {
		resp.Policy = policy.String()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) routingView(snap *cluster.SlotMap, info routing.RoutingInfo) RoutingView {
	view := func(route routing.Route, indices []int) RouteView {
		addr, _ := snap.Lookup(route)
		return RouteView{
			Slot:    route.Slot,
			Role:    route.Addr.String(),
			Indices: indices,
			Address: addr,
		}
	}

	rv := RoutingView{Kind: info.Kind.String()}
	switch info.Kind {
	case routing.SpecificNode:
		v := view(info.Route, nil)
		rv.Route = &v
	case routing.MultiSlot:
		rv.Slots = make([]RouteView, len(info.Slots))
		for i, sr := range info.Slots {
			rv.Slots[i] = view(sr.Route, sr.Indices)
		}
	}
	return rv
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	cmd, ok := s.readCommand(w, r)
	if !ok {
		return
	}

	plan, err := s.topology.Plan(cmd)
	if err != nil {
		s.writePlanError(w, err)
		return
	}

	s.metrics.IncCounter("slotrouter_plan_total", map[string]string{"kind": plan.Routing.Kind.String()}, 1)
	s.metrics.IncCounter("slotrouter_plan_subcommands_total", nil, float64(len(plan.Commands)))

	resp := PlanResponse{
		ID:       plan.ID.String(),
		Epoch:    plan.Epoch,
		Kind:     plan.Routing.Kind.String(),
		Commands: make([]SubCommandView, len(plan.Commands)),
	}
	if plan.HasPolicy() {
		resp.Policy = plan.Policy.String()
	}
	for i, sc := range plan.Commands {
		args := make([]string, sc.Cmd.Len())
		for j, a := range sc.Cmd.Args() {
			args[j] = string(a)
		}
		resp.Commands[i] = SubCommandView{
			Address: sc.Address,
			Args:    args,
			Packed:  string(sc.Cmd.Packed()),
			Indices: sc.Indices,
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writePlanError(w http.ResponseWriter, err error) {
	s.metrics.IncCounter("slotrouter_plan_errors_total", nil, 1)

	switch {
	case errors.Is(err, cluster.ErrUnroutable):
		s.writeJSON(w, http.StatusUnprocessableEntity, NewErrorResponse(err.Error()))
	case errors.Is(err, cluster.ErrEmptyTopology), errors.Is(err, cluster.ErrSlotUnresolved):
		s.writeJSON(w, http.StatusServiceUnavailable, NewErrorResponse(err.Error()))
	default:
		s.writeJSON(w, http.StatusInternalServerError, NewErrorResponse(err.Error()))
	}
}

// handleCombine replans the command and merges the node replies to it.
// A node error reply becomes the merged reply, as a server would return it.
func (s *Server) handleCombine(w http.ResponseWriter, r *http.Request) {
	var req CombineRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	cmd, err := decodeCommand(req.CommandRequest)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}

	replies := make([]resp.Value, len(req.Replies))
	for i, raw := range req.Replies {
		if replies[i], err = decodeRESP(raw); err != nil {
			s.writeJSON(w, http.StatusBadRequest, NewErrorResponse(fmt.Sprintf("reply %d: %v", i, err)))
			return
		}
	}

	plan, err := s.topology.Plan(cmd)
	if err != nil {
		s.writePlanError(w, err)
		return
	}

	merged, err := plan.Combine(replies)
	var serverErr *resp.ServerError
	switch {
	case errors.As(err, &serverErr):
		merged = resp.Error(serverErr.Message)
	case errors.Is(err, cluster.ErrResponseCount):
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	case err != nil:
		// 422 stays reserved for commands that cannot be routed
		s.writeJSON(w, http.StatusConflict, NewErrorResponse(err.Error()))
		return
	}

	out, err := resp.Encode(merged)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, NewErrorResponse(err.Error()))
		return
	}
	s.metrics.IncCounter("slotrouter_combine_total", nil, 1)
	s.writeJSON(w, http.StatusOK, CombineResponse{
		PlanID: plan.ID.String(),
		Epoch:  plan.Epoch,
		Reply:  string(out),
	})
}

func (s *Server) handleGetTopology(w http.ResponseWriter, r *http.Request) {
	entries := s.topology.Snapshot().Entries()
	resp := TopologyResponse{
		Epoch: s.topology.Epoch(),
		Slots: make([]TopologyEntry, len(entries)),
	}
	for i, e := range entries {
		resp.Slots[i] = TopologyEntry{End: e.End, Master: e.Addrs.Master(), Replica: e.Addrs.Replica()}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePutTopology(w http.ResponseWriter, r *http.Request) {
	var req TopologyRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if err := cluster.ValidateSlots(req.Slots); err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}

	var epoch uint64
	if req.Merge {
		epoch = s.topology.Merge(req.Slots)
	} else {
		epoch = s.topology.Refresh(req.Slots)
	}
	s.writeJSON(w, http.StatusOK, NewEpochResponse(epoch))
}

func (s *Server) handleClearTopology(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, NewEpochResponse(s.topology.Clear()))
}
