// Package models defines request and response types for Prism's admin HTTP
// surface. All types are JSON-serializable.
package models

import "time"

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse represents a simple status response.
type StatusResponse struct {
	Status string `json:"status"`
}

// MemoryStats reports system memory usage via gopsutil.
type MemoryStats struct {
	TotalMB     float64 `json:"total_mb"`
	FreeMB      float64 `json:"free_mb"`
	UsedMB      float64 `json:"used_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// CPUStats reports system CPU usage via gopsutil.
type CPUStats struct {
	NumCPU      int     `json:"num_cpu"`
	UsedPercent float64 `json:"used_percent"`
	IdlePercent float64 `json:"idle_percent"`
}

// RegistryStats summarizes the host registry, not per-hostname detail: this
// is deliberately not the excluded registry query API.
type RegistryStats struct {
	TotalHosts   int `json:"total_hosts"`
	OnlineHosts  int `json:"online_hosts"`
	OfflineHosts int `json:"offline_hosts"`
	DNSPending   int `json:"dns_pending"`
	DNSSynced    int `json:"dns_synced"`
	DNSFailed    int `json:"dns_failed"`
}

// ServerStatsResponse is the /stats response body.
type ServerStatsResponse struct {
	Uptime        string        `json:"uptime"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     time.Time     `json:"start_time"`
	GoRoutines    int           `json:"goroutines"`
	CPU           CPUStats      `json:"cpu"`
	Memory        MemoryStats   `json:"memory"`
	Registry      RegistryStats `json:"registry"`
}
