package models

import "time"

// MetricSample is one sampling tick of the supervised process.
type MetricSample struct {
	SampledAt     time.Time `json:"sampled_at"`
	CPUUsage      float64   `json:"cpu_usage"`
	MemoryBytes   uint64    `json:"memory_bytes"`
	TPS           float64   `json:"tps"`
	PlayerCount   int       `json:"player_count"`
	UptimeSeconds uint64    `json:"uptime_seconds"`
	LastTickMS    float64   `json:"last_tick_ms"`
	EntityCount   int       `json:"entity_count"`
	ChunkCount    int       `json:"chunk_count"`
}
