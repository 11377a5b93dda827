package dnsbackend

import (
	"context"
	"sync"
)

// MemoryBackend is an in-process fake used by scenario tests (spec §8,
// S1-S6) and by operators running without a real DNS backend configured.
type MemoryBackend struct {
	mu      sync.Mutex
	zones   map[string]bool
	records map[string]map[string]string // zone -> fqdn(hostname, zone) -> ip
}

// NewMemoryBackend builds a fake backend with the given zones pre-provisioned.
func NewMemoryBackend(zones ...string) *MemoryBackend {
	b := &MemoryBackend{
		zones:   make(map[string]bool),
		records: make(map[string]map[string]string),
	}
	for _, z := range zones {
		b.zones[z] = true
		b.records[z] = make(map[string]string)
	}
	return b
}

func (b *MemoryBackend) ZoneExists(_ context.Context, zone string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.zones[zone], nil
}

func (b *MemoryBackend) UpsertA(_ context.Context, zone, hostname, ip string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.zones[zone] {
		return "", ErrZoneNotFound
	}
	b.records[zone][fqdn(hostname, zone)] = ip
	return zone + "/" + hostname + "/" + rrType(ip), nil
}

func (b *MemoryBackend) DeleteA(_ context.Context, zone, hostname, _, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.zones[zone] {
		return ErrZoneNotFound
	}
	delete(b.records[zone], fqdn(hostname, zone))
	return nil
}

// Lookup returns the IP currently recorded for hostname in zone, for tests.
func (b *MemoryBackend) Lookup(zone, hostname string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ip, ok := b.records[zone][fqdn(hostname, zone)]
	return ip, ok
}
