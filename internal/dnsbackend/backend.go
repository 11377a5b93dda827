// Package dnsbackend implements the DNS Backend capability of spec §4.C:
// propagating a hostname -> IP mapping into an authoritative DNS system.
// The registration engine never talks to a DNS server directly; it only
// ever calls this interface, so swapping PowerDNS for Route 53 (or a fake,
// in tests) touches no other package.
package dnsbackend

import (
	"context"
	"errors"
	"net"
)

// ErrZoneNotFound is returned by UpsertA/DeleteA when the configured zone
// does not exist on the backend, per spec §4.C edge case "zone absent".
var ErrZoneNotFound = errors.New("dnsbackend: zone not found")

// TransientError wraps a backend failure that is safe to retry (5xx,
// timeout, connection refused). A non-transient error is treated as
// permanent by the reconciler and does not get retried.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "dnsbackend: transient error: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Backend propagates host records into an authoritative DNS system. Record
// type (A vs AAAA) is never chosen by the caller: both methods derive it
// from the IP literal's family, per spec §4.C/§6 ("type is fixed to A/AAAA",
// "Record type is A (or AAAA by IP family)").
type Backend interface {
	// UpsertA creates or updates the A or AAAA record for hostname within
	// zone, selecting the record type from ip's family, and returns a
	// backend-assigned record identifier. The identifier can be passed back
	// to DeleteA; none of the backends in this package read it there.
	UpsertA(ctx context.Context, zone, hostname, ip string) (recordID string, err error)
	// DeleteA removes the record previously created by UpsertA. ip is the
	// last value passed to UpsertA for this hostname, used only to select
	// which record type (A or AAAA) to remove.
	DeleteA(ctx context.Context, zone, hostname, ip, recordID string) error
	// ZoneExists reports whether zone is provisioned on the backend.
	ZoneExists(ctx context.Context, zone string) (bool, error)
}

// rrType returns the DNS record type ("A" or "AAAA") for ip based on its
// address family. A malformed literal defaults to "A" the way an
// already-validated registry record never exercises.
func rrType(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed != nil && parsed.To4() == nil {
		return "AAAA"
	}
	return "A"
}
