package model

import (
	"time"

	"github.com/goccy/go-json"
)

// SampleStatus is the status the sampler writes into history. Other engine
// states are resolved at query time only.
type SampleStatus string

const (
	StatusRunning     SampleStatus = "running"
	StatusErrorSample SampleStatus = "error-sample"
)

// UpdateStatus is the tri-state result of an image update check.
type UpdateStatus int8

const (
	UpdateUnknown UpdateStatus = iota
	UpdateAvailable
	UpdateCurrent
)

func (u UpdateStatus) String() string {
	switch u {
	case UpdateAvailable:
		return "available"
	case UpdateCurrent:
		return "current"
	default:
		return "unknown"
	}
}

// Bool returns nil for unknown.
func (u UpdateStatus) Bool() *bool {
	var b bool
	switch u {
	case UpdateAvailable:
		b = true
	case UpdateCurrent:
		b = false
	default:
		return nil
	}
	return &b
}

func (u UpdateStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Bool())
}

func (u *UpdateStatus) UnmarshalJSON(data []byte) error {
	var b *bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	switch {
	case b == nil:
		*u = UpdateUnknown
	case *b:
		*u = UpdateAvailable
	default:
		*u = UpdateCurrent
	}
	return nil
}

// MetricRecord is one retained history entry. Records are values; the store
// only ever hands out copies.
type MetricRecord struct {
	Timestamp       time.Time    `json:"timestamp"`
	CPUPercent      float64      `json:"cpu_percent"`
	MemPercent      float64      `json:"mem_percent"`
	MemUsageMiB     float64      `json:"mem_usage_mib"`
	Status          SampleStatus `json:"status"`
	Name            string       `json:"name"`
	NetRxMB         float64      `json:"net_rx_mb"`
	NetTxMB         float64      `json:"net_tx_mb"`
	BlockReadMB     float64      `json:"block_read_mb"`
	BlockWriteMB    float64      `json:"block_write_mb"`
	PIDs            uint64       `json:"pids"`
	UpdateAvailable UpdateStatus `json:"update_available"`
}

// ErrorRecord builds the sentinel record written when sampling an entity
// failed for a reason other than the entity vanishing.
func ErrorRecord(name string, at time.Time) MetricRecord {
	return MetricRecord{
		Timestamp:       at,
		Status:          StatusErrorSample,
		Name:            name,
		UpdateAvailable: UpdateUnknown,
	}
}
