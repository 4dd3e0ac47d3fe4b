package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/jacksonlee411/grc-console/pkg/application"
	"github.com/jacksonlee411/grc-console/pkg/httpapi"
)

type healthStatus string

const (
	healthStatusHealthy  healthStatus = "healthy"
	healthStatusDegraded healthStatus = "degraded"
	healthStatusDown     healthStatus = "down"
)

const (
	healthCheckTimeout = 5 * time.Second
	slowCheckThreshold = 500 * time.Millisecond
)

// HealthCheck pings one dependency. A failing Critical check takes the
// console down; any other failure only degrades it.
type HealthCheck struct {
	Name     string
	Critical bool
	Ping     func(ctx context.Context) error
}

type healthResponse struct {
	Status    healthStatus               `json:"status"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]componentHealth `json:"checks"`
}

type componentHealth struct {
	Status       healthStatus `json:"status"`
	ResponseTime string       `json:"responseTime,omitempty"`
	Error        string       `json:"error,omitempty"`
}

// HealthPath is where the health report is served.
const HealthPath = "/health"

type HealthController struct {
	checks []HealthCheck
	path   string
}

func NewHealthController(checks ...HealthCheck) application.Controller {
	return &HealthController{checks: checks, path: HealthPath}
}

func (c *HealthController) Key() string {
	return c.path
}

func (c *HealthController) Register(r *mux.Router) {
	r.HandleFunc(c.path, c.Get).Methods(http.MethodGet)
}

func (c *HealthController) Get(w http.ResponseWriter, r *http.Request) {
	response := c.perform(r.Context())

	status := http.StatusOK
	if response.Status == healthStatusDown {
		status = http.StatusServiceUnavailable
	}
	_ = httpapi.WriteJSON(w, status, response)
}

func (c *HealthController) perform(ctx context.Context) healthResponse {
	results := make([]componentHealth, len(c.checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, check := range c.checks {
		g.Go(func() error {
			results[i] = runCheck(gctx, check)
			return nil
		})
	}
	_ = g.Wait()

	overall := healthStatusHealthy
	checks := make(map[string]componentHealth, len(c.checks))
	for i, check := range c.checks {
		checks[check.Name] = results[i]
		overall = mergeHealthStatus(overall, results[i].Status)
	}
	return healthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
}

func runCheck(ctx context.Context, check HealthCheck) componentHealth {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	err := check.Ping(ctx)
	elapsed := time.Since(start)

	out := componentHealth{Status: healthStatusHealthy, ResponseTime: elapsed.String()}
	switch {
	case err != nil && check.Critical:
		out.Status = healthStatusDown
		out.Error = err.Error()
	case err != nil:
		out.Status = healthStatusDegraded
		out.Error = err.Error()
	case elapsed > slowCheckThreshold:
		out.Status = healthStatusDegraded
	}
	return out
}

func mergeHealthStatus(current, next healthStatus) healthStatus {
	if next == healthStatusDown {
		return healthStatusDown
	}
	if next == healthStatusDegraded && current == healthStatusHealthy {
		return healthStatusDegraded
	}
	return current
}
