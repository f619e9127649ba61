package api

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"socdash/util"
)

const healthCheckTimeout = 3 * time.Second

// Health states
const (
	healthStatusHealthy  = "healthy"
	healthStatusDegraded = "degraded"
	componentUp          = "up"
	componentDown        = "down"
)

// healthCheck probes every registered dependency concurrently. The body is
// {status, <component>: up|down, timestamp} and the status code is 503 when
// any component is down.
func (a *API) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(a.health))
	for name := range a.health {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]error, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, check HealthCheckFunc) {
			defer wg.Done()
			results[i] = check(ctx)
		}(i, a.health[name])
	}
	wg.Wait()

	body := map[string]interface{}{
		"timestamp": time.Now().UTC(),
	}
	status := healthStatusHealthy
	code := http.StatusOK
	for i, name := range names {
		if results[i] != nil {
			body[name] = componentDown
			status = healthStatusDegraded
			code = http.StatusServiceUnavailable
			a.logger.Warnw("Health check failed",
				"component", name,
				"error", util.SanitizeError(results[i]))
			continue
		}
		body[name] = componentUp
	}
	body["status"] = status

	a.respondJSON(w, body, code)
}
