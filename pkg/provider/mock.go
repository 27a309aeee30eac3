package provider

import (
	"context"
	"sync"
	"time"
)

// MockProvider serves scripted snapshots for engine and API testing.
type MockProvider struct {
	id ProviderID

	mu        sync.Mutex
	quotas    []UsageQuota
	err       *ProbeError
	installed bool
	probes    int
}

// NewMockProvider creates a mock provider that reports as installed and
// returns a single healthy session quota until reconfigured.
func NewMockProvider(id string) *MockProvider {
	return &MockProvider{
		id:        ProviderID(id),
		installed: true,
		quotas: []UsageQuota{
			{ProviderID: ProviderID(id), QuotaType: QuotaSession, PercentRemaining: 100},
		},
	}
}

func (p *MockProvider) ID() ProviderID { return p.id }

func (p *MockProvider) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.installed
}

// SetInstalled toggles the availability pre-check result.
func (p *MockProvider) SetInstalled(installed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.installed = installed
}

// SetQuotas replaces the quotas returned by the next probes.
func (p *MockProvider) SetQuotas(quotas []UsageQuota) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotas = quotas
	p.err = nil
}

// FailWith makes every probe fail with the given error until SetQuotas.
func (p *MockProvider) FailWith(err *ProbeError) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Probes returns how many times Probe has been called.
func (p *MockProvider) Probes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.probes
}

func (p *MockProvider) Probe(ctx context.Context) (UsageSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probes++
	if p.err != nil {
		return UsageSnapshot{}, p.err
	}
	quotas := make([]UsageQuota, len(p.quotas))
	copy(quotas, p.quotas)
	return UsageSnapshot{
		ProviderID: p.id,
		Quotas:     quotas,
		CapturedAt: time.Now().UTC(),
	}, nil
}
