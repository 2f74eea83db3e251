package metrics

import (
	"time"

	"webp-renditions/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// StatsProviderFunc adapts a function to StatsProvider.
type StatsProviderFunc func() Stats

// GetStats implements StatsProvider.
func (f StatsProviderFunc) GetStats() Stats { return f() }

// Stats holds the current job queue counts
type Stats struct {
	Pending int
	Running int
	Done    int
	Failed  int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	QueueDepth.WithLabelValues("pending").Set(float64(stats.Pending))
	QueueDepth.WithLabelValues("running").Set(float64(stats.Running))
	QueueDepth.WithLabelValues("done").Set(float64(stats.Done))
	QueueDepth.WithLabelValues("failed").Set(float64(stats.Failed))

	logging.Debug("Metrics collected: pending=%d, running=%d, done=%d, failed=%d",
		stats.Pending, stats.Running, stats.Done, stats.Failed)
}
