package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prism-dns/prism/internal/api/models"
	"github.com/prism-dns/prism/internal/registry"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Health godoc
// @Summary Health check
// @Description Returns process liveness status. Always 200 once the process is up.
// @Tags system
// @Produce json
// @Success 200 {object} models.StatusResponse
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}

// Ready godoc
// @Summary Readiness check
// @Description Returns 200 if the service can serve registrations, 503 if the database is unreachable.
// @Tags system
// @Produce json
// @Success 200 {object} models.StatusResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /ready [get]
func (h *Handler) Ready(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusOK, models.StatusResponse{Status: "ready"})
		return
	}
	if err := h.db.Health(); err != nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ready"})
}

// Stats godoc
// @Summary Server statistics
// @Description Returns runtime statistics: system CPU/memory usage and aggregate registry counts
// @Tags system
// @Produce json
// @Success 200 {object} models.ServerStatsResponse
// @Security ApiKeyAuth
// @Router /stats [get]
func (h *Handler) Stats(c *gin.Context) {
	uptime := time.Since(h.startTime)

	memStats := models.MemoryStats{}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		memStats.TotalMB = float64(vmStat.Total) / 1024 / 1024
		memStats.FreeMB = float64(vmStat.Available) / 1024 / 1024
		memStats.UsedMB = float64(vmStat.Used) / 1024 / 1024
		memStats.UsedPercent = vmStat.UsedPercent
	}

	cpuStats := models.CPUStats{
		NumCPU: runtime.NumCPU(),
	}
	if cpuPercent, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		cpuStats.UsedPercent = cpuPercent[0]
		cpuStats.IdlePercent = 100.0 - cpuPercent[0]
	}

	resp := models.ServerStatsResponse{
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
		StartTime:     h.startTime,
		GoRoutines:    runtime.NumGoroutine(),
		CPU:           cpuStats,
		Memory:        memStats,
		Registry:      h.registryStats(),
	}

	c.JSON(http.StatusOK, resp)
}

// registryStats aggregates per-record counts without exposing any
// individual record, which stays out of scope for this surface.
func (h *Handler) registryStats() models.RegistryStats {
	var stats models.RegistryStats
	if h.registry == nil {
		return stats
	}
	for _, rec := range h.registry.SnapshotAll() {
		stats.TotalHosts++
		switch rec.Status {
		case registry.StatusOnline:
			stats.OnlineHosts++
		case registry.StatusOffline:
			stats.OfflineHosts++
		}
		switch rec.DNSSyncStatus {
		case registry.DNSSyncPending:
			stats.DNSPending++
		case registry.DNSSyncSynced:
			stats.DNSSynced++
		case registry.DNSSyncFailed:
			stats.DNSFailed++
		}
	}
	return stats
}
