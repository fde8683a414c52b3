// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Counter is a monotonically increasing value.
type Counter interface {
	Add(delta float64)
}

// Collector hands out named counters. Implementations must return the same
// counter for repeated calls with the same name.
type Collector interface {
	NewCounter(name, help string) Counter
}

// PrometheusCollector creates prometheus counters on first use and registers
// them with a Registerer.
type PrometheusCollector struct {
	reg      prometheus.Registerer
	mu       sync.Mutex
	counters map[string]prometheus.Counter
}

// NewPrometheusCollector returns a collector registering into reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusCollector{
		reg:      reg,
		counters: make(map[string]prometheus.Counter),
	}
}

// NewCounter returns the counter registered under name, creating it if needed.
// A counter already registered elsewhere with the same descriptor is reused.
func (c *PrometheusCollector) NewCounter(name, help string) Counter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.counters[name]; ok {
		return existing
	}

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	if err := c.reg.Register(counter); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if prev, ok := are.ExistingCollector.(prometheus.Counter); ok {
				counter = prev
			}
		}
	}
	c.counters[name] = counter
	return counter
}

// Noop discards all measurements.
type Noop struct{}

// NewCounter returns a counter that ignores Add.
func (Noop) NewCounter(string, string) Counter { return noopCounter{} }

type noopCounter struct{}

func (noopCounter) Add(float64) {}
