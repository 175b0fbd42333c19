package server

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// handleSystemStatus handles GET /api/system/status requests.
// Feeds the control panel's host gauges.
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"uptime":    time.Since(s.startedAt).String(),
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if percents, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percents) > 0 {
		status["cpu_percent"] = percents[0]
	} else if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read CPU usage")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		status["memory"] = map[string]interface{}{
			"total_mb":     vm.Total / 1024 / 1024,
			"used_mb":      vm.Used / 1024 / 1024,
			"used_percent": vm.UsedPercent,
		}
	} else {
		s.log.Warn().Err(err).Msg("Failed to read memory usage")
	}

	if usage, err := disk.Usage("/"); err == nil {
		status["disk"] = map[string]interface{}{
			"total_gb":     usage.Total / 1024 / 1024 / 1024,
			"used_gb":      usage.Used / 1024 / 1024 / 1024,
			"used_percent": usage.UsedPercent,
		}
	} else {
		s.log.Warn().Err(err).Msg("Failed to read disk usage")
	}

	if uptime, err := host.Uptime(); err == nil {
		status["host_uptime_hours"] = uptime / 3600
	}

	s.writeJSON(w, http.StatusOK, status)
}
