// Package health reports dependency status for load balancers and operators.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"qrcall/pkg/platform/httputil"
)

const checkTimeout = 2 * time.Second

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusDown     = "down"
)

// CheckFunc returns nil when the dependency is usable.
type CheckFunc func(ctx context.Context) error

type check struct {
	name     string
	fn       CheckFunc
	critical bool
}

// Component is one dependency's result.
type Component struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type Report struct {
	Status     string      `json:"status"`
	Timestamp  time.Time   `json:"timestamp"`
	Components []Component `json:"components"`
}

// Checker runs registered checks concurrently.
type Checker struct {
	checks []check
	now    func() time.Time
}

type Option func(*Checker)

func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		c.now = now
	}
}

func New(opts ...Option) *Checker {
	c := &Checker{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Critical registers a check whose failure takes the service down.
func (c *Checker) Critical(name string, fn CheckFunc) {
	c.checks = append(c.checks, check{name: name, fn: fn, critical: true})
}

// Optional registers a check whose failure only degrades the service.
func (c *Checker) Optional(name string, fn CheckFunc) {
	c.checks = append(c.checks, check{name: name, fn: fn})
}

func (c *Checker) Run(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	results := make([]Component, len(c.checks))
	var wg sync.WaitGroup
	for i, chk := range c.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			comp := Component{Name: chk.name, Status: StatusOK}
			if err := chk.fn(ctx); err != nil {
				comp.Status = StatusDegraded
				if chk.critical {
					comp.Status = StatusDown
				}
				comp.Error = err.Error()
			}
			results[i] = comp
		}()
	}
	wg.Wait()

	overall := StatusOK
	for _, comp := range results {
		switch comp.Status {
		case StatusDown:
			overall = StatusDown
		case StatusDegraded:
			if overall == StatusOK {
				overall = StatusDegraded
			}
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return Report{Status: overall, Timestamp: c.now().UTC(), Components: results}
}

// ServeHTTP answers 503 only when a critical dependency is down.
func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := c.Run(r.Context())
	status := http.StatusOK
	if report.Status == StatusDown {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, report)
}
