// Package registry implements the host registry: the authoritative,
// concurrently-accessed keyed store of HostRecords described in spec §4.D.
//
// Operations are linearizable across connections: for any two calls issued
// from different goroutines there is a total order in which both appear to
// have executed atomically. This is achieved with locks sharded by a hash
// of the canonicalised hostname — the same hostname is always routed to the
// same shard, so per-hostname invariants (ownership, monotone status) hold
// without a single global lock serializing unrelated hostnames.
package registry

import (
	"errors"
	"time"
)

// Status is the closed set of host reachability states.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// DNSSyncStatus is the closed set of DNS-propagation states for a record.
type DNSSyncStatus string

const (
	DNSSyncPending  DNSSyncStatus = "pending"
	DNSSyncSynced   DNSSyncStatus = "synced"
	DNSSyncFailed   DNSSyncStatus = "failed"
	DNSSyncDisabled DNSSyncStatus = "disabled"
)

// HostRecord is the central entity of the registry (spec §3).
type HostRecord struct {
	Hostname      string
	CurrentIP     string
	OwnerID       string
	Status        Status
	FirstSeen     time.Time
	LastSeen      time.Time
	DNSSyncStatus DNSSyncStatus
	DNSZone       string
	DNSRecordID   string
}

// Clone returns a value copy, safe to hand to callers outside the shard lock.
func (r *HostRecord) Clone() HostRecord {
	return *r
}

var (
	// ErrOwnerMismatch is returned when a hostname is claimed by one owner
	// and a different owner attempts to register or touch it.
	ErrOwnerMismatch = errors.New("registry: owner mismatch")
	// ErrMalformedHostname is returned when a hostname fails DNS-label validation.
	ErrMalformedHostname = errors.New("registry: malformed hostname")
	// ErrUnknownHost is returned by Touch for a hostname with no existing record.
	ErrUnknownHost = errors.New("registry: unknown host")
)

// RegistrationResult is returned by UpsertOnRegistration.
type RegistrationResult struct {
	PriorStatus Status
	IPChanged   bool
	Created     bool
}

// ShouldReconcile reports whether the caller should enqueue a DNS reconcile,
// per spec §4.D: "true iff ip_changed or prior_status != online".
func (r RegistrationResult) ShouldReconcile() bool {
	return r.IPChanged || r.PriorStatus != StatusOnline
}

// TouchResult is returned by Touch.
type TouchResult struct {
	PriorStatus Status
}
