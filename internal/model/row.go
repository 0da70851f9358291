package model

// Row is one line of the metrics table. It is also the CSV export schema.
type Row struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	PIDCount        uint64       `json:"pid_count"`
	CPU             float64      `json:"cpu"`
	Mem             float64      `json:"mem"`
	MemUsage        float64      `json:"mem_usage"`
	MemLimit        *float64     `json:"mem_limit"`
	Combined        float64      `json:"combined"`
	Status          string       `json:"status"`
	UptimeSec       *int64       `json:"uptime_sec"`
	Uptime          string       `json:"uptime"`
	SizeRw          *float64     `json:"size_rw"`
	SizeRootFs      *float64     `json:"size_rootfs"`
	NetRx           float64      `json:"net_io_rx"`
	NetTx           float64      `json:"net_io_tx"`
	BlockRead       float64      `json:"block_io_r"`
	BlockWrite      float64      `json:"block_io_w"`
	Image           string       `json:"image"`
	Ports           string       `json:"ports"`
	Restarts        int          `json:"restarts"`
	UpdateAvailable UpdateStatus `json:"update_available"`
	ComposeProject  string       `json:"compose_project"`
	ComposeService  string       `json:"compose_service"`
}

// Series is the chart payload for one container.
type Series struct {
	ContainerID  string    `json:"container_id"`
	RangeSeconds int64     `json:"range_seconds"`
	Timestamps   []float64 `json:"timestamps"`
	CPUUsage     []float64 `json:"cpu_usage"`
	RAMUsage     []float64 `json:"ram_usage"`
}

// Len returns the number of points in the series.
func (s Series) Len() int {
	return len(s.Timestamps)
}
