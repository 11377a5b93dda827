package dnsbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// PowerDNSConfig configures a PowerDNSBackend client.
type PowerDNSConfig struct {
	// BaseURL is the PowerDNS Authoritative Server API root, e.g.
	// "https://pdns.internal:8081/api/v1/servers/localhost".
	BaseURL string
	APIKey  string
	TTL     uint32
	Timeout time.Duration
}

// PowerDNSBackend talks to a PowerDNS Authoritative Server's HTTP API,
// PATCHing a zone's RRsets the way the API documents (single A or AAAA
// record per hostname, REPLACE/DELETE changetype).
type PowerDNSBackend struct {
	client  *http.Client
	baseURL string
	apiKey  string
	ttl     uint32
}

// NewPowerDNSBackend builds a PowerDNSBackend from cfg.
func NewPowerDNSBackend(cfg PowerDNSConfig) *PowerDNSBackend {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 300
	}
	return &PowerDNSBackend{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		ttl:     ttl,
	}
}

type pdnsRecord struct {
	Content  string `json:"content"`
	Disabled bool   `json:"disabled"`
}

type pdnsRRSet struct {
	Name       string       `json:"name"`
	Type       string       `json:"type"`
	TTL        uint32       `json:"ttl"`
	ChangeType string       `json:"changetype"`
	Records    []pdnsRecord `json:"records,omitempty"`
}

type pdnsPatchRequest struct {
	RRSets []pdnsRRSet `json:"rrsets"`
}

func (b *PowerDNSBackend) patchZone(ctx context.Context, zone string, rrset pdnsRRSet) error {
	payload, err := json.Marshal(pdnsPatchRequest{RRSets: []pdnsRRSet{rrset}})
	if err != nil {
		return fmt.Errorf("dnsbackend: encode patch: %w", err)
	}

	url := fmt.Sprintf("%s/zones/%s", b.baseURL, zone)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(payload))
	if err != nil {
		return &TransientError{Err: err}
	}
	req.Header.Set("X-API-Key", b.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrZoneNotFound
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return &TransientError{Err: fmt.Errorf("powerdns returned %d", resp.StatusCode)}
	default:
		return fmt.Errorf("dnsbackend: powerdns returned %d", resp.StatusCode)
	}
}

func (b *PowerDNSBackend) UpsertA(ctx context.Context, zone, hostname, ip string) (string, error) {
	name := fqdn(hostname, zone)
	err := b.patchZone(ctx, zone, pdnsRRSet{
		Name:       name,
		Type:       rrType(ip),
		TTL:        b.ttl,
		ChangeType: "REPLACE",
		Records:    []pdnsRecord{{Content: ip}},
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

func (b *PowerDNSBackend) DeleteA(ctx context.Context, zone, hostname, ip, _ string) error {
	name := fqdn(hostname, zone)
	return b.patchZone(ctx, zone, pdnsRRSet{
		Name:       name,
		Type:       rrType(ip),
		ChangeType: "DELETE",
	})
}

func (b *PowerDNSBackend) ZoneExists(ctx context.Context, zone string) (bool, error) {
	url := fmt.Sprintf("%s/zones/%s", b.baseURL, zone)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, &TransientError{Err: err}
	}
	req.Header.Set("X-API-Key", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return false, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return false, &TransientError{Err: fmt.Errorf("powerdns returned %d", resp.StatusCode)}
	default:
		return false, fmt.Errorf("dnsbackend: powerdns returned %d", resp.StatusCode)
	}
}

func fqdn(hostname, zone string) string {
	if strings.HasSuffix(hostname, ".") {
		return hostname
	}
	return hostname + "." + strings.TrimSuffix(zone, ".") + "."
}
