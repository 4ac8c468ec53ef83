package metrics

import (
	"time"

	"github.com/directord/directord/pkg/docstore"
)

// Collector periodically samples the docstore for gauge metrics that aren't
// naturally updated as counters at the point of the event (worker liveness,
// in-flight job count).
type Collector struct {
	store  docstore.Store
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over store.
func NewCollector(store docstore.Store) *Collector {
	return &Collector{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15s ticker.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectWorkerMetrics()
	c.collectJobMetrics()
}

func (c *Collector) collectWorkerMetrics() {
	workers, err := c.store.ListWorkers()
	if err != nil {
		return
	}

	now := time.Now()
	var live, expired int
	for _, w := range workers {
		if w.Live(now) {
			live++
		} else {
			expired++
		}
	}

	WorkersTotal.WithLabelValues("live").Set(float64(live))
	WorkersTotal.WithLabelValues("expired").Set(float64(expired))
}

func (c *Collector) collectJobMetrics() {
	jobs, err := c.store.ListJobs()
	if err != nil {
		return
	}

	var inFlight int
	for _, job := range jobs {
		if job.Accepted && len(job.Success)+len(job.Failed) < len(job.Nodes) {
			inFlight++
		}
	}

	JobsInFlight.Set(float64(inFlight))
}
