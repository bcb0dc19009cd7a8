package orchestrator

import (
	"context"
	"time"

	"github.com/poiesic/vectorpipe/embedding"
	"github.com/poiesic/vectorpipe/storage"
	"github.com/poiesic/vectorpipe/vectorstore"
)

// Overall health statuses.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// DependencyHealth is the result of one dependency check.
type DependencyHealth struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
}

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) DependencyHealth
}

// Health aggregates dependency checks with queue occupancy.
type Health struct {
	Status       string             `json:"status"`
	ActiveJobs   int                `json:"active_jobs"`
	QueueLength  int                `json:"queue_length"`
	Dependencies []DependencyHealth `json:"dependencies"`
	CheckedAt    time.Time          `json:"checked_at"`
}

// EmbeddingHealth checks the embedding client's quota state.
func EmbeddingHealth(c *embedding.Client) HealthCheck {
	return HealthCheck{
		Name: "embedding",
		Check: func(context.Context) DependencyHealth {
			h := c.HealthCheck()
			return DependencyHealth{Name: "embedding", Healthy: h.Healthy, Status: h.Status, Detail: h.Message}
		},
	}
}

// StoreHealth checks the vector store breaker and index.
func StoreHealth(c *vectorstore.Client) HealthCheck {
	return HealthCheck{
		Name: "vector_store",
		Check: func(ctx context.Context) DependencyHealth {
			h := c.Health()
			d := DependencyHealth{Name: "vector_store", Healthy: h.Healthy, Status: h.Status}
			if !h.Healthy {
				return d
			}
			ok, err := c.IndexExists(ctx, storage.IndexVector)
			switch {
			case err != nil:
				d.Healthy = false
				d.Status = "unreachable"
				d.Detail = err.Error()
			case !ok:
				d.Healthy = false
				d.Status = "index_missing"
			}
			return d
		},
	}
}

// Health runs every registered check. The result is unhealthy when all
// dependencies fail and degraded when only some do.
func (o *Orchestrator) Health(ctx context.Context) Health {
	stats := o.Stats()
	h := Health{
		Status:      StatusHealthy,
		ActiveJobs:  stats.ActiveJobs,
		QueueLength: stats.QueueLength,
		CheckedAt:   o.now(),
	}

	failed := 0
	for _, hc := range o.checks {
		d := hc.Check(ctx)
		if d.Name == "" {
			d.Name = hc.Name
		}
		if !d.Healthy {
			failed++
		}
		h.Dependencies = append(h.Dependencies, d)
	}
	switch {
	case failed == 0:
	case failed == len(o.checks):
		h.Status = StatusUnhealthy
	default:
		h.Status = StatusDegraded
	}

	o.mu.Lock()
	o.lastHealth = &h
	o.mu.Unlock()
	return h
}

// LastHealth returns the most recent health result, if any check has run.
func (o *Orchestrator) LastHealth() (Health, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastHealth == nil {
		return Health{}, false
	}
	return *o.lastHealth, true
}

func (o *Orchestrator) monitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-o.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(o.baseCtx, interval)
			h := o.Health(ctx)
			cancel()
			if h.Status != StatusHealthy {
				o.logger.Warn("health check", "status", h.Status, "active", h.ActiveJobs, "queued", h.QueueLength)
			}
		}
	}
}
