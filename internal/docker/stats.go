// internal/docker/stats.go
package docker

import (
	"context"
	"io"
	"time"

	"emperror.dev/errors"
	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"github.com/rusenback/dockerstats/internal/model"
)

// StatsSnapshot hakee containerin resurssitiedot kerran (one-shot, ei
// streamia). Engine ei täytä precpu_stats kenttää one-shot kutsussa, joten
// CPU lasketaan aina edellistä snapshottia vasten.
func (c *Client) StatsSnapshot(ctx context.Context, id string) (*model.RawSnapshot, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	resp, err := c.cli.ContainerStatsOneShot(ctx, id)
	if err != nil {
		return nil, errors.WrapIfWithDetails(err, "failed to fetch stats", "container", id)
	}
	defer resp.Body.Close()

	return DecodeSnapshot(resp.Body)
}

// DecodeSnapshot decodes one stats document. Each top-level section is
// decoded on its own, so a section with unexpected types is left nil and its
// metrics read as zero. Only a document that is not a JSON object fails.
func DecodeSnapshot(r io.Reader) (*model.RawSnapshot, error) {
	var doc map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.WrapIf(err, "failed to decode stats")
	}

	var snap model.RawSnapshot
	sections := map[string]any{
		"read":         &snap.Read,
		"cpu_stats":    &snap.CPUStats,
		"precpu_stats": &snap.PreCPUStats,
		"memory_stats": &snap.MemoryStats,
		"networks":     &snap.Networks,
		"blkio_stats":  &snap.BlkioStats,
		"pids_stats":   &snap.PidsStats,
	}
	for key, dst := range sections {
		raw, ok := doc[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			log.WithError(err).WithField("section", key).Debug("ignoring malformed stats section")
			resetSection(dst)
		}
	}
	return &snap, nil
}

// resetSection zeroes a section a failed decode may have half filled.
func resetSection(dst any) {
	switch v := dst.(type) {
	case *time.Time:
		*v = time.Time{}
	case **model.CPUStats:
		*v = nil
	case **model.MemoryStats:
		*v = nil
	case *map[string]*model.NetworkStats:
		*v = nil
	case **model.BlkioStats:
		*v = nil
	case **model.PidsStats:
		*v = nil
	}
}
