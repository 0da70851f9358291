// internal/model/stats.go
package model

import "time"

// RawSnapshot is one stats document as returned by the engine's one-shot
// stats endpoint. Counters are pointers so that a missing field can be told
// apart from a zero reading.
type RawSnapshot struct {
	Read time.Time `json:"read"`

	// CPU
	CPUStats    *CPUStats `json:"cpu_stats,omitempty"`
	PreCPUStats *CPUStats `json:"precpu_stats,omitempty"`

	// Memory
	MemoryStats *MemoryStats `json:"memory_stats,omitempty"`

	// Network, keyed by interface name
	Networks map[string]*NetworkStats `json:"networks,omitempty"`

	// Block I/O (Disk)
	BlkioStats *BlkioStats `json:"blkio_stats,omitempty"`

	// Processes
	PidsStats *PidsStats `json:"pids_stats,omitempty"`
}

type CPUStats struct {
	CPUUsage    *CPUUsage `json:"cpu_usage,omitempty"`
	SystemUsage *uint64   `json:"system_cpu_usage,omitempty"`
	OnlineCPUs  *uint32   `json:"online_cpus,omitempty"`
}

type CPUUsage struct {
	TotalUsage  *uint64  `json:"total_usage,omitempty"`
	PercpuUsage []uint64 `json:"percpu_usage,omitempty"`
}

type MemoryStats struct {
	Usage *uint64           `json:"usage,omitempty"`
	Limit *uint64           `json:"limit,omitempty"`
	Stats map[string]uint64 `json:"stats,omitempty"`
}

type NetworkStats struct {
	RxBytes   uint64 `json:"rx_bytes"`
	RxPackets uint64 `json:"rx_packets"`
	RxErrors  uint64 `json:"rx_errors"`
	RxDropped uint64 `json:"rx_dropped"`
	TxBytes   uint64 `json:"tx_bytes"`
	TxPackets uint64 `json:"tx_packets"`
	TxErrors  uint64 `json:"tx_errors"`
	TxDropped uint64 `json:"tx_dropped"`
}

type BlkioStats struct {
	IoServiceBytesRecursive []BlkioEntry `json:"io_service_bytes_recursive"`
}

type BlkioEntry struct {
	Major uint64 `json:"major"`
	Minor uint64 `json:"minor"`
	Op    string `json:"op"`
	Value uint64 `json:"value"`
}

type PidsStats struct {
	Current uint64 `json:"current,omitempty"`
	Limit   uint64 `json:"limit,omitempty"`
}
