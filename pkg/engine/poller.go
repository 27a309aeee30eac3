// Package engine drives the periodic probing of registered providers and
// fans results out to the store, metrics, and the optional Redis mirror.
package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/rmax-ai/usagelord/pkg/provider"
	"github.com/rmax-ai/usagelord/pkg/store"
	redispub "github.com/rmax-ai/usagelord/pkg/store/redis"
)

// Poller manages the probe loop for registered providers
type Poller struct {
	store     *store.Store
	publisher *redispub.Publisher // optional; nil disables mirroring
	interval  time.Duration
	mu        sync.RWMutex
	providers []provider.Provider
}

// NewPoller creates a new poller instance
func NewPoller(store *store.Store, interval time.Duration) *Poller {
	return &Poller{
		store:     store,
		interval:  interval,
		providers: make([]provider.Provider, 0),
	}
}

// SetPublisher enables mirroring snapshots to Redis.
func (p *Poller) SetPublisher(pub *redispub.Publisher) {
	p.publisher = pub
}

// Register adds a provider to the poller
func (p *Poller) Register(prov provider.Provider) {
	p.mu.Lock()
	p.providers = append(p.providers, prov)
	p.mu.Unlock()
}

// GetProvider returns a registered provider by ID (helper for testing/debugging)
func (p *Poller) GetProvider(id provider.ProviderID) provider.Provider {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, prov := range p.providers {
		if prov.ID() == id {
			return prov
		}
	}
	return nil
}

// Start begins the probe loop in the calling goroutine. An immediate first
// pass runs before the ticker so fresh data is available right after boot.
func (p *Poller) Start(ctx context.Context) {
	log.Println("Poller started")

	p.ProbeAll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Poller stopping due to context cancellation")
			return
		case <-ticker.C:
			p.ProbeAll(ctx)
		}
	}
}

// ProbeAll probes every registered provider concurrently. Providers share no
// state, so one slow CLI never delays the others.
func (p *Poller) ProbeAll(ctx context.Context) {
	p.mu.RLock()
	providers := make([]provider.Provider, len(p.providers))
	copy(providers, p.providers)
	p.mu.RUnlock()

	var wg sync.WaitGroup
	for _, prov := range providers {
		wg.Add(1)
		go func(prov provider.Provider) {
			defer wg.Done()
			p.probe(ctx, prov)
		}(prov)
	}
	wg.Wait()
}

// probe runs a single provider probe and records the outcome.
func (p *Poller) probe(ctx context.Context, prov provider.Provider) {
	if !prov.Available() {
		// Not installed; skip without spawning anything.
		return
	}

	start := time.Now()
	snap, err := prov.Probe(ctx)
	ProbeDurationSeconds.WithLabelValues(string(prov.ID())).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Printf("Probe failed for provider %s: %v", prov.ID(), err)
		p.recordFailure(ctx, prov.ID(), err)
		return
	}

	for _, q := range snap.Quotas {
		UsagePercentRemaining.WithLabelValues(string(q.ProviderID), string(q.QuotaType)).Set(q.PercentRemaining)
	}

	if err := p.store.AppendSnapshot(ctx, snap); err != nil {
		log.Printf("Failed to append snapshot for %s: %v", prov.ID(), err)
	}

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, snap); err != nil {
			log.Printf("Failed to publish snapshot for %s: %v", prov.ID(), err)
		}
	}
}

func (p *Poller) recordFailure(ctx context.Context, pid provider.ProviderID, err error) {
	kind := "unknown"
	message := err.Error()
	var pe *provider.ProbeError
	if errors.As(err, &pe) {
		kind = string(pe.Kind)
	}
	ProbeFailuresTotal.WithLabelValues(string(pid), kind).Inc()

	failure := store.ProbeFailure{
		ProviderID: pid,
		Kind:       kind,
		Message:    message,
		OccurredAt: time.Now().UTC(),
	}
	if err := p.store.AppendFailure(ctx, failure); err != nil {
		log.Printf("Failed to append failure for %s: %v", pid, err)
	}
}
