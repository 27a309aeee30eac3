// Package redis publishes the latest usage snapshots to Redis so other
// machines on the network can read quota state without talking to the
// daemon's HTTP API.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rmax-ai/usagelord/pkg/provider"
)

// snapshotTTL keeps stale entries from outliving a dead daemon.
const snapshotTTL = 15 * time.Minute

// Publisher mirrors the latest snapshot per provider into Redis: one key
// per provider plus an index set of provider ids.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func snapshotKey(pid provider.ProviderID) string {
	return fmt.Sprintf("usagelord:quotas:%s", pid)
}

const indexKey = "usagelord:providers"

// Publish writes one snapshot, replacing any previous one for the provider.
func (p *Publisher) Publish(ctx context.Context, snap provider.UsageSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := p.client.Set(ctx, snapshotKey(snap.ProviderID), data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	if err := p.client.SAdd(ctx, indexKey, string(snap.ProviderID)).Err(); err != nil {
		return fmt.Errorf("failed to index provider: %w", err)
	}
	return nil
}

// Latest reads back the published snapshot for one provider. Returns
// (nil, nil) when none is published or it has expired.
func (p *Publisher) Latest(ctx context.Context, pid provider.ProviderID) (*provider.UsageSnapshot, error) {
	data, err := p.client.Get(ctx, snapshotKey(pid)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap provider.UsageSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Providers lists the provider ids that have published at least once.
func (p *Publisher) Providers(ctx context.Context) ([]provider.ProviderID, error) {
	members, err := p.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	ids := make([]provider.ProviderID, 0, len(members))
	for _, m := range members {
		ids = append(ids, provider.ProviderID(m))
	}
	return ids, nil
}
