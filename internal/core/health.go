package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// healthCheckTimeout bounds all probes together. Probes still running when it
// expires are reported as timed out.
const healthCheckTimeout = 2 * time.Second

// HealthProbe checks one dependency (database, redis) the service needs.
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

type probeFunc struct {
	name  string
	check func(ctx context.Context) error
}

func (p probeFunc) Name() string                    { return p.name }
func (p probeFunc) Check(ctx context.Context) error { return p.check(ctx) }

// NewProbe adapts a ping function, such as pgxpool.Pool.Ping, to a HealthProbe.
func NewProbe(name string, check func(ctx context.Context) error) HealthProbe {
	return probeFunc{name: name, check: check}
}

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
	Version    string                     `json:"version,omitempty"`
}

// HandleHealth runs every probe concurrently and returns 200 when all pass,
// 503 otherwise. Mounted at GET /health.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	var version string
	if s.Config != nil {
		version = s.Config.Build.Version
	}

	probes := s.HealthProbes
	if len(probes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{Status: "healthy", Version: version})
		return
	}

	var (
		mu      sync.Mutex
		results = make(map[int]error, len(probes))
		wg      sync.WaitGroup
	)
	for i, probe := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := runProbe(ctx, probe)
			mu.Lock()
			results[i] = err
			mu.Unlock()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()

	resp := healthResponse{
		Status:     "healthy",
		Components: make(map[string]componentStatus, len(probes)),
		Version:    version,
	}
	for i, probe := range probes {
		err, finished := results[i]
		switch {
		case !finished:
			resp.Status = "unhealthy"
			resp.Components[probe.Name()] = componentStatus{Status: "unhealthy", Message: "health check timed out"}
		case err != nil:
			resp.Status = "unhealthy"
			resp.Components[probe.Name()] = componentStatus{Status: "unhealthy", Message: err.Error()}
		default:
			resp.Components[probe.Name()] = componentStatus{Status: "healthy"}
		}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	JSON(w, r, status, resp)
}

func runProbe(ctx context.Context, p HealthProbe) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			err = fmt.Errorf("probe panicked: %v", rvr)
		}
	}()
	return p.Check(ctx)
}
