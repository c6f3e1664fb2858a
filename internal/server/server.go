package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/beamctl/beamtune/internal/config"
	"github.com/beamctl/beamtune/internal/logging"
	"github.com/beamctl/beamtune/internal/metrics"
	"github.com/beamctl/beamtune/internal/optimization"
	"github.com/beamctl/beamtune/internal/plans"
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// AlignmentState tracks one alignment job through its lifecycle.
// The state is guarded by the server's job mutex.
type AlignmentState struct {
	ID          string
	Method      string
	Plan        string // "maximize", "minimize" or "walk_to_target"
	Motor       string
	Detector    string
	Status      string // "pending", "running", "completed", "failed", "cancelled"
	StartTime   time.Time
	EndTime     *time.Time
	Result      *optimization.SearchResult
	Err         string
	CancelFunc  context.CancelFunc
	LastUpdated time.Time
}

// Server implements the HTTP and JSON-RPC surface of the alignment
// service. It owns the device registry and the alignment job table.
type Server struct {
	cfg    *config.Config
	logger Logger

	// Device registry
	motors    map[string]optimization.Motor
	detectors map[string]optimization.Detector

	// Alignment job management
	jobs   map[string]*AlignmentState
	jobsMu sync.RWMutex // Protects the jobs map
}

// NewServer creates a new server instance with the given config and logger
// The logger parameter accepts any type that implements the Logger interface
func NewServer(cfg *config.Config, logger Logger) *Server {
	return &Server{
		cfg:       cfg,
		logger:    logger,
		motors:    make(map[string]optimization.Motor),
		detectors: make(map[string]optimization.Detector),
		jobs:      make(map[string]*AlignmentState),
	}
}

// RegisterMotor makes a motor available to alignment jobs under the name.
func (s *Server) RegisterMotor(name string, motor optimization.Motor) {
	s.motors[name] = motor
}

// RegisterDetector makes a detector available to alignment jobs under the
// name.
func (s *Server) RegisterDetector(name string, detector optimization.Detector) {
	s.detectors[name] = detector
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/optimization/{id}", s.handleCancel)
		r.Get("/methods", s.handleMethods)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string        `json:"jsonrpc"`
		ID      interface{}   `json:"id"`
		Method  string        `json:"method"`
		Params  []interface{} `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, -32700, "Parse error", nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" {
		s.respondWithError(w, -32600, "Invalid Request", nil)
		return
	}

	// Route to appropriate handler
	var result interface{}
	var err error

	switch request.Method {
	case "optimization.start":
		result, err = s.handleOptimizeStart(request.Params)
	case "optimization.status":
		result, err = s.handleOptimizationStatus(request.Params)
	case "optimization.cancel":
		err = s.handleOptimizationCancel(request.Params)
	case "optimization.methods":
		result = plans.Methods()
	default:
		s.respondWithError(w, -32601, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.respondWithError(w, -32000, err.Error(), request.ID)
		return
	}

	// Send successful response
	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// startRequest carries the parameters of an alignment job.
type startRequest struct {
	Plan          string      `json:"plan"`
	Method        string      `json:"method"`
	Motor         string      `json:"motor"`
	Detector      string      `json:"detector"`
	Bounds        *[2]float64 `json:"bounds"`
	Tolerance     float64     `json:"tolerance"`
	Target        float64     `json:"target"`
	Average       int         `json:"average"`
	MaxIterations int         `json:"max_iterations"`
	BestEffort    bool        `json:"best_effort"`
}

// handleOptimizeStart handles the optimization.start JSON-RPC method.
// It starts a new alignment job with the specified parameters.
// Expected parameters: {"plan": "maximize", "motor": "motor", "detector": "det", "tolerance": 0.01}
// Returns: {"optimization_id": "opt_123", "status": "pending"}
func (s *Server) handleOptimizeStart(params []interface{}) (interface{}, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("missing required parameters")
	}

	// Round-trip through JSON so RPC and REST share one parameter shape
	raw, err := json.Marshal(params[0])
	if err != nil {
		return nil, fmt.Errorf("invalid parameter format, expected object")
	}
	var req startRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("invalid parameter format: %v", err)
	}

	return s.startAlignment(req)
}

// startAlignment validates a request and launches the job goroutine.
func (s *Server) startAlignment(req startRequest) (interface{}, error) {
	switch req.Plan {
	case "":
		req.Plan = "maximize"
	case "maximize", "minimize", "walk_to_target":
	default:
		return nil, fmt.Errorf("unknown plan %q, expected maximize, minimize or walk_to_target", req.Plan)
	}

	motor, ok := s.motors[req.Motor]
	if !ok {
		return nil, fmt.Errorf("motor %q is not registered", req.Motor)
	}
	detector, ok := s.detectors[req.Detector]
	if !ok {
		return nil, fmt.Errorf("detector %q is not registered", req.Detector)
	}

	if req.Tolerance == 0 {
		req.Tolerance = s.cfg.Optimization.DefaultTolerance
	}
	if req.Method == "" {
		req.Method = s.cfg.Optimization.DefaultMethod
	}
	if req.Average == 0 {
		req.Average = s.cfg.Optimization.DefaultAverage
	}
	if req.MaxIterations == 0 {
		req.MaxIterations = s.cfg.Optimization.MaxIterations
	}

	// Generate a unique ID for this job
	id := fmt.Sprintf("opt_%d", time.Now().UnixNano())

	// Create a cancellable context
	ctx, cancel := context.WithCancel(context.Background())

	state := &AlignmentState{
		ID:          id,
		Method:      req.Method,
		Plan:        req.Plan,
		Motor:       req.Motor,
		Detector:    req.Detector,
		Status:      "pending",
		StartTime:   time.Now(),
		CancelFunc:  cancel,
		LastUpdated: time.Now(),
	}

	s.jobsMu.Lock()
	s.jobs[id] = state
	s.jobsMu.Unlock()

	// Run the alignment in a goroutine
	go s.runAlignment(ctx, state, motor, detector, req)

	return map[string]interface{}{
		"optimization_id": id,
		"status":          "pending",
	}, nil
}

// handleOptimizationStatus handles the optimization.status JSON-RPC method.
// Expected parameters: {"optimization_id": "opt_123"}
// Returns: status object with best observation, final interval and history
func (s *Server) handleOptimizationStatus(params []interface{}) (interface{}, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("missing required parameters")
	}

	paramMap, ok := params[0].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid parameter format, expected object")
	}

	id, ok := paramMap["optimization_id"].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("optimization_id is required")
	}

	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	state, exists := s.jobs[id]
	if !exists {
		return nil, fmt.Errorf("optimization not found")
	}

	response := map[string]interface{}{
		"status":      state.Status,
		"plan":        state.Plan,
		"method":      state.Method,
		"motor":       state.Motor,
		"detector":    state.Detector,
		"start_time":  state.StartTime.Format(time.RFC3339),
		"last_update": state.LastUpdated.Format(time.RFC3339),
	}

	if state.EndTime != nil {
		response["end_time"] = state.EndTime.Format(time.RFC3339)
	}
	if state.Err != "" {
		response["error"] = state.Err
	}

	if result := state.Result; result != nil {
		response["converged"] = result.Converged
		response["interval"] = []float64{result.Low, result.High}
		response["iterations"] = result.Iterations
		response["probes"] = result.Probes
		if result.Best != nil {
			response["best"] = map[string]interface{}{
				"point": result.Best.Point,
				"value": result.Best.Value,
			}
		}
		if len(result.History) > 0 {
			history := make([]map[string]interface{}, len(result.History))
			for i, obs := range result.History {
				history[i] = map[string]interface{}{
					"iteration": obs.Iteration,
					"point":     obs.Point,
					"value":     obs.Value,
				}
			}
			response["history"] = history
		}
	}

	return response, nil
}

// handleOptimizationCancel handles the optimization.cancel JSON-RPC method.
// Expected parameters: {"optimization_id": "opt_123"}
func (s *Server) handleOptimizationCancel(params []interface{}) error {
	if len(params) == 0 {
		return fmt.Errorf("missing required parameters")
	}

	paramMap, ok := params[0].(map[string]interface{})
	if !ok {
		return fmt.Errorf("invalid parameter format, expected object")
	}

	id, ok := paramMap["optimization_id"].(string)
	if !ok || id == "" {
		return fmt.Errorf("optimization_id is required")
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	state, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("optimization not found")
	}

	switch state.Status {
	case "completed", "failed", "cancelled":
		// Already in a terminal state
		return fmt.Errorf("cannot cancel optimization with status: %s", state.Status)
	}

	if state.CancelFunc != nil {
		state.CancelFunc()
	}

	state.Status = "cancelled"
	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now

	s.logger.Info("Alignment cancelled", map[string]interface{}{
		"optimization_id": id,
	})

	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  code,
		"message": message,
	})

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// runAlignment executes one alignment job in a goroutine.
func (s *Server) runAlignment(ctx context.Context, state *AlignmentState, motor optimization.Motor, detector optimization.Detector, req startRequest) {
	s.jobsMu.Lock()
	state.Status = "running"
	state.LastUpdated = time.Now()
	s.jobsMu.Unlock()

	opts := plans.Options{
		Method:        req.Method,
		Average:       req.Average,
		MaxIterations: req.MaxIterations,
		BestEffort:    req.BestEffort,
		Logger: logging.NewZapLogger(s.logger.WithFields(map[string]interface{}{
			"optimization_id": state.ID,
		})),
	}
	if req.Bounds != nil {
		opts.Limits = *req.Bounds
	}

	started := time.Now()
	var result *optimization.SearchResult
	var err error

	switch state.Plan {
	case "minimize":
		result, err = plans.Minimize(ctx, motor, detector, req.Tolerance, opts)
	case "walk_to_target":
		result, err = plans.WalkToTarget(ctx, motor, detector, req.Target, req.Tolerance, opts)
	default:
		result, err = plans.Maximize(ctx, motor, detector, req.Tolerance, opts)
	}

	metrics.RunDuration.WithLabelValues(state.Method).Observe(time.Since(started).Seconds())
	if result != nil {
		metrics.ProbesTotal.WithLabelValues(state.Method).Add(float64(result.Probes))
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	if state.Status == "cancelled" {
		// Cancel won the race; keep the terminal state it recorded.
		metrics.RunsTotal.WithLabelValues(state.Method, "cancelled").Inc()
		return
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			state.Status = "cancelled"
		} else {
			s.logger.Error("Alignment failed", map[string]interface{}{
				"optimization_id": state.ID,
				"error":           err.Error(),
			})
			state.Status = "failed"
			state.Err = err.Error()
		}
	} else {
		state.Status = "completed"
		state.Result = result
	}
	metrics.RunsTotal.WithLabelValues(state.Method, state.Status).Inc()

	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now
}

// Close cleans up resources
func (s *Server) Close() error {
	// Cancel all running alignments
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	for _, job := range s.jobs {
		if job.CancelFunc != nil {
			job.CancelFunc()
		}
	}
	return nil
}

// handleOptimize handles the HTTP POST /optimize endpoint for starting a
// new alignment job
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	result, err := s.startAlignment(req)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(result)
}

// handleStatus handles the HTTP GET /status/:id endpoint
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Missing optimization ID", http.StatusBadRequest)
		return
	}

	result, err := s.handleOptimizationStatus([]interface{}{map[string]interface{}{
		"optimization_id": id,
	}})

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// handleCancel handles the HTTP DELETE /optimization/:id endpoint
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Missing optimization ID", http.StatusBadRequest)
		return
	}

	err := s.handleOptimizationCancel([]interface{}{map[string]interface{}{
		"optimization_id": id,
	}})

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "cancellation requested",
	})
}

// handleMethods handles the HTTP GET /methods endpoint
func (s *Server) handleMethods(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"methods": plans.Methods(),
	})
}
