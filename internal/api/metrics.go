package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gpio-remote-core/internal/bridges/gpio"
)

// SystemMetrics is the JSON view of runtime and bridge counters. The
// same counters are scraped from /metrics in Prometheus format.
type SystemMetrics struct {
	Timestamp     string             `json:"timestamp"`
	Version       string             `json:"version"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Runtime       RuntimeMetrics     `json:"runtime"`
	Stream        StreamMetrics      `json:"stream"`
	Bridge        gpio.BridgeMetrics `json:"bridge"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// StreamMetrics contains state stream statistics.
type StreamMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

func (s *Server) handleSystemMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	writeJSON(w, http.StatusOK, SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Stream: StreamMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Bridge: s.bridge.GetMetrics(),
	})
}
