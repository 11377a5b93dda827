package registry

import (
	"fmt"
	"time"

	"github.com/prism-dns/prism/internal/database"
)

// store persists HostRecords to SQLite. A nil store makes the registry an
// in-memory-only structure, which tests use to avoid touching disk.
type store struct {
	db *database.DB
}

func newStore(db *database.DB) *store {
	if db == nil {
		return nil
	}
	return &store{db: db}
}

// loadAll reads every persisted record back into memory at startup.
func (s *store) loadAll() ([]*HostRecord, error) {
	rows, err := s.db.Conn().Query(`
		SELECT hostname, current_ip, owner_id, status, first_seen, last_seen,
		       dns_sync_status, dns_zone, dns_record_id
		FROM host_records
	`)
	if err != nil {
		return nil, fmt.Errorf("registry: load records: %w", err)
	}
	defer rows.Close()

	var out []*HostRecord
	for rows.Next() {
		r := &HostRecord{}
		var status, dnsStatus string
		if err := rows.Scan(&r.Hostname, &r.CurrentIP, &r.OwnerID, &status,
			&r.FirstSeen, &r.LastSeen, &dnsStatus, &r.DNSZone, &r.DNSRecordID); err != nil {
			return nil, fmt.Errorf("registry: scan record: %w", err)
		}
		r.Status = Status(status)
		r.DNSSyncStatus = DNSSyncStatus(dnsStatus)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("registry: iterate records: %w", err)
	}
	return out, nil
}

// upsert writes the full record, creating or overwriting the persisted row.
func (s *store) upsert(r *HostRecord) error {
	_, err := s.db.Conn().Exec(`
		INSERT INTO host_records
			(hostname, current_ip, owner_id, status, first_seen, last_seen,
			 dns_sync_status, dns_zone, dns_record_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hostname) DO UPDATE SET
			current_ip      = excluded.current_ip,
			status          = excluded.status,
			last_seen       = excluded.last_seen,
			dns_sync_status = excluded.dns_sync_status,
			dns_zone        = excluded.dns_zone,
			dns_record_id   = excluded.dns_record_id
	`, r.Hostname, r.CurrentIP, r.OwnerID, string(r.Status), r.FirstSeen, r.LastSeen,
		string(r.DNSSyncStatus), r.DNSZone, r.DNSRecordID)
	if err != nil {
		return fmt.Errorf("registry: persist %s: %w", r.Hostname, err)
	}
	return nil
}

// updateStatus persists only the fields the heartbeat/monitor paths touch.
func (s *store) updateStatus(hostname string, status Status, lastSeen time.Time) error {
	_, err := s.db.Conn().Exec(`
		UPDATE host_records SET status = ?, last_seen = ? WHERE hostname = ?
	`, string(status), lastSeen, hostname)
	if err != nil {
		return fmt.Errorf("registry: update status %s: %w", hostname, err)
	}
	return nil
}

// updateDNSSync persists the DNS reconcile outcome for one record.
func (s *store) updateDNSSync(hostname string, status DNSSyncStatus, zone, recordID string) error {
	_, err := s.db.Conn().Exec(`
		UPDATE host_records SET dns_sync_status = ?, dns_zone = ?, dns_record_id = ?
		WHERE hostname = ?
	`, string(status), zone, recordID, hostname)
	if err != nil {
		return fmt.Errorf("registry: update dns sync %s: %w", hostname, err)
	}
	return nil
}
