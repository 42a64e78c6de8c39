package monitor

import (
	"sync"
	"time"
)

type Collector interface {
	Record(metrics OpMetrics)
	Summary() Summary
}

type InMemoryCollector struct {
	mu        sync.RWMutex
	ops       map[string]OpSummary
	startTime time.Time
}

func NewInMemoryCollector() *InMemoryCollector {
	return &InMemoryCollector{
		ops:       make(map[string]OpSummary),
		startTime: time.Now(),
	}
}

func (c *InMemoryCollector) Record(metrics OpMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.ops[metrics.Op]
	s.Count++
	s.Attempts += metrics.Attempts
	s.Conflicts += metrics.Conflicts
	s.TotalDuration += metrics.Duration
	s.AvgDuration = s.TotalDuration / time.Duration(s.Count)
	if metrics.Success {
		s.Successes++
	} else {
		s.Failures++
		s.LastError = metrics.Error
	}
	c.ops[metrics.Op] = s
}

func (c *InMemoryCollector) Summary() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ops := make(map[string]OpSummary, len(c.ops))
	for k, v := range c.ops {
		ops[k] = v
	}

	return Summary{
		Ops:   ops,
		Since: c.startTime,
		Until: time.Now(),
	}
}

func (c *InMemoryCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops = make(map[string]OpSummary)
	c.startTime = time.Now()
}

type NoOpCollector struct{}

func NewNoOpCollector() *NoOpCollector {
	return &NoOpCollector{}
}

func (c *NoOpCollector) Record(metrics OpMetrics) {}

func (c *NoOpCollector) Summary() Summary {
	return Summary{Ops: map[string]OpSummary{}}
}
