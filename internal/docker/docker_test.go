package docker

import (
	"context"
	"io"
	"strings"
	"testing"

	"emperror.dev/errors"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rusenback/dockerstats/internal/model"
)

func TestFormatPorts(t *testing.T) {
	ports := nat.PortMap{
		"443/tcp": []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: "8443"}},
		"80/tcp":  []nat.PortBinding{{HostPort: "8080"}},
		"53/udp":  nil,
	}
	assert.Equal(t, "53/udp, 0.0.0.0:8080->80/tcp, 127.0.0.1:8443->443/tcp", FormatPorts(ports))
	assert.Equal(t, "", FormatPorts(nil))
}

func TestParseTop(t *testing.T) {
	titles := []string{"USER", "PID", "%CPU", "%MEM", "VSZ", "COMMAND"}
	rows := [][]string{
		{"root", "1", "0.5", "1.2", "1000", "nginx: master"},
		{"short"},
		{"www", "7", "0.0", "0.3", "900", "nginx: worker"},
	}
	procs := parseTop(titles, rows)
	require.Len(t, procs, 2)
	assert.Equal(t, model.Process{PID: "1", User: "root", CPU: "0.5", Memory: "1.2", Command: "nginx: master"}, procs[0])
	assert.Equal(t, "7", procs[1].PID)

	procs = parseTop([]string{"UID", "PID", "CMD"}, [][]string{{"0", "1", "sh"}})
	require.Len(t, procs, 1)
	assert.Equal(t, "", procs[0].CPU)
	assert.Equal(t, "sh", procs[0].Command)
}

func TestDemux(t *testing.T) {
	var buf strings.Builder
	stdout := stdcopy.NewStdWriter(&buf, stdcopy.Stdout)
	stderr := stdcopy.NewStdWriter(&buf, stdcopy.Stderr)
	_, _ = stdout.Write([]byte("hello\n"))
	_, _ = stderr.Write([]byte("oops\n"))

	r := Demux(io.NopCloser(strings.NewReader(buf.String())))
	defer r.Close()

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello\noops\n", string(out))
}

func TestPullProgress(t *testing.T) {
	stream := `{"status":"Pulling from library/nginx","id":"latest"}
{"status":"Downloading","id":"abc","progressDetail":{"current":100,"total":200},"progress":"[==>  ]"}
{"status":"Pull complete","id":"abc"}
{"status":"Status: Downloaded newer image for nginx:latest"}
`
	var lines []string
	err := PullProgress(strings.NewReader(stream), func(s string) { lines = append(lines, s) })
	require.NoError(t, err)
	assert.Equal(t, []string{
		"latest: Pulling from library/nginx",
		"abc: Pull complete",
		"Status: Downloaded newer image for nginx:latest",
	}, lines)
}

func TestPullProgress_Error(t *testing.T) {
	stream := `{"status":"Pulling from library/nope"}
{"errorDetail":{"message":"manifest unknown"},"error":"manifest unknown"}
`
	err := PullProgress(strings.NewReader(stream), func(string) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manifest unknown")
}

func TestIsNotFound(t *testing.T) {
	err := notFound("No such container: %s", "abc")
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(errors.WrapIf(err, "failed to fetch stats")))
	assert.False(t, IsNotFound(errors.NewPlain("boom")))
	assert.False(t, IsNotFound(nil))
}

func TestDisplayImage(t *testing.T) {
	assert.Equal(t, "nginx:latest", displayImage("nginx:latest", "sha256:0123456789abcdef"))
	assert.Equal(t, "0123456789ab", displayImage("", "sha256:0123456789abcdef"))
	assert.Equal(t, "0123456789ab", displayImage("sha256:0123456789abcdef", "sha256:0123456789abcdef"))
}

func TestDecodeSnapshot(t *testing.T) {
	doc := `{
		"read": "2024-01-15T10:30:45Z",
		"cpu_stats": {"cpu_usage": {"total_usage": 100, "percpu_usage": [50, 50]}, "system_cpu_usage": 1000, "online_cpus": 2},
		"memory_stats": {"usage": 512, "limit": 1024},
		"networks": {"eth0": {"rx_bytes": 10, "tx_bytes": 20}},
		"blkio_stats": {"io_service_bytes_recursive": [{"op": "Read", "value": 5}]},
		"pids_stats": {"current": 3}
	}`
	snap, err := DecodeSnapshot(strings.NewReader(doc))
	require.NoError(t, err)
	require.NotNil(t, snap.CPUStats)
	assert.Equal(t, uint64(100), *snap.CPUStats.CPUUsage.TotalUsage)
	assert.Equal(t, uint32(2), *snap.CPUStats.OnlineCPUs)
	assert.Equal(t, uint64(1024), *snap.MemoryStats.Limit)
	assert.Equal(t, uint64(20), snap.Networks["eth0"].TxBytes)
	assert.Equal(t, uint64(3), snap.PidsStats.Current)
	assert.Nil(t, snap.PreCPUStats)

	snap, err = DecodeSnapshot(strings.NewReader(`{"cpu_stats": {}}`))
	require.NoError(t, err)
	assert.Nil(t, snap.CPUStats.SystemUsage)
	assert.Nil(t, snap.MemoryStats)

	_, err = DecodeSnapshot(strings.NewReader("not json"))
	assert.Error(t, err)
}

func TestDecodeSnapshot_MalformedSection(t *testing.T) {
	doc := `{
		"cpu_stats": {"cpu_usage": {"total_usage": "lots"}, "system_cpu_usage": 1000},
		"memory_stats": {"usage": 512, "limit": 1024},
		"networks": ["eth0"],
		"pids_stats": {"current": 3}
	}`
	snap, err := DecodeSnapshot(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Nil(t, snap.CPUStats)
	assert.Nil(t, snap.Networks)
	require.NotNil(t, snap.MemoryStats)
	assert.Equal(t, uint64(512), *snap.MemoryStats.Usage)
	assert.Equal(t, uint64(3), snap.PidsStats.Current)
}

func TestMock(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	m.Add(MockContainer{
		Container: model.Container{ID: "a", Name: "web"},
		Snapshots: []*model.RawSnapshot{{PidsStats: &model.PidsStats{Current: 1}}, {PidsStats: &model.PidsStats{Current: 2}}},
		Logs:      "one\ntwo\nthree\n",
	})
	m.Add(MockContainer{Container: model.Container{ID: "b", Name: "db", State: "exited"}})

	running, err := m.ListContainers(ctx, false)
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, "a", running[0].ID)

	all, err := m.ListContainers(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	for _, want := range []uint64{1, 2, 2} {
		snap, err := m.StatsSnapshot(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, want, snap.PidsStats.Current)
	}
	assert.Equal(t, 3, m.StatsCalls("a"))

	rc, err := m.ContainerLogs(ctx, "a", 2, false)
	require.NoError(t, err)
	out, _ := io.ReadAll(rc)
	assert.Equal(t, "two\nthree\n", string(out))

	require.NoError(t, m.StopContainer(ctx, "a"))
	running, _ = m.ListContainers(ctx, false)
	assert.Empty(t, running)

	m.Remove("a")
	_, err = m.StatsSnapshot(ctx, "a")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, []string{"stop:a"}, m.Calls())
}
