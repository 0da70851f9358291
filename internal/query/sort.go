package query

import (
	"math"
	"sort"

	"github.com/rusenback/dockerstats/internal/model"
)

// Sort keys accepted by SortRows.
const (
	KeyCombined  = "combined"
	KeySizeRw    = "size_rw"
	KeyUptimeSec = "uptime_sec"
)

var numericKeys = map[string]func(model.Row) float64{
	"cpu":        func(r model.Row) float64 { return r.CPU },
	"mem":        func(r model.Row) float64 { return r.Mem },
	"mem_usage":  func(r model.Row) float64 { return r.MemUsage },
	KeyCombined:  func(r model.Row) float64 { return r.Combined },
	"pid_count":  func(r model.Row) float64 { return float64(r.PIDCount) },
	"restarts":   func(r model.Row) float64 { return float64(r.Restarts) },
	"net_io_rx":  func(r model.Row) float64 { return r.NetRx },
	"net_io_tx":  func(r model.Row) float64 { return r.NetTx },
	"block_io_r": func(r model.Row) float64 { return r.BlockRead },
	"block_io_w": func(r model.Row) float64 { return r.BlockWrite },
	"mem_limit":  func(r model.Row) float64 { return orNegInf(r.MemLimit) },
	KeySizeRw:    func(r model.Row) float64 { return orNegInf(r.SizeRw) },
	"size_rootfs": func(r model.Row) float64 {
		return orNegInf(r.SizeRootFs)
	},
	KeyUptimeSec: func(r model.Row) float64 {
		if r.UptimeSec == nil {
			return math.Inf(-1)
		}
		return float64(*r.UptimeSec)
	},
	"update_available": func(r model.Row) float64 {
		if r.UpdateAvailable == model.UpdateAvailable {
			return 1
		}
		return 0
	},
}

var stringKeys = map[string]func(model.Row) string{
	"id":              func(r model.Row) string { return r.ID },
	"name":            func(r model.Row) string { return r.Name },
	"status":          func(r model.Row) string { return r.Status },
	"image":           func(r model.Row) string { return r.Image },
	"ports":           func(r model.Row) string { return r.Ports },
	"uptime":          func(r model.Row) string { return r.Uptime },
	"compose_project": func(r model.Row) string { return r.ComposeProject },
	"compose_service": func(r model.Row) string { return r.ComposeService },
}

func orNegInf(v *float64) float64 {
	if v == nil {
		return math.Inf(-1)
	}
	return *v
}

// ValidSortKey reports whether key names a sortable row field.
func ValidSortKey(key string) bool {
	_, numeric := numericKeys[key]
	_, str := stringKeys[key]
	return numeric || str
}

// SortRows orders rows by the given key. Unknown keys sort by combined
// usage. Equal values are ordered by name, ascending in either direction.
func SortRows(rows []model.Row, order Sort) {
	less := func(a, b model.Row) int {
		if fn, ok := stringKeys[order.Key]; ok {
			return compareStrings(fn(a), fn(b))
		}
		fn, ok := numericKeys[order.Key]
		if !ok {
			fn = numericKeys[KeyCombined]
		}
		return compareFloats(fn(a), fn(b))
	}

	sort.SliceStable(rows, func(i, j int) bool {
		c := less(rows[i], rows[j])
		if order.Desc {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].ID < rows[j].ID
	})
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
