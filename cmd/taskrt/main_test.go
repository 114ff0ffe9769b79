package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/casualjim/taskrt/conformance"
	json "github.com/goccy/go-json"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestBackendsJSON(t *testing.T) {
	out, err := execute(t, "backends", "-o", "json")
	require.NoError(t, err)

	doc := gjson.Parse(out)
	require.Equal(t, int64(4), doc.Get("#").Int())
	assert.Equal(t, "goroutine", doc.Get("0.name").String())
	assert.Equal(t, "detach", doc.Get("0.drop_policy").String())
	assert.Equal(t, "cancel", doc.Get("1.drop_policy").String())
	assert.True(t, doc.Get("2.local_work").Bool())
	assert.Equal(t, "temporal", doc.Get("3.server").String())
	assert.True(t, doc.Get("3.capabilities.SpawnBlocking").Bool())
}

func TestBackendsMarkdown(t *testing.T) {
	out, err := execute(t, "backends", "-o", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "| local | yes | yes | yes | yes | cancel | - |")
	assert.Contains(t, out, "| temporal | yes | yes | no | yes | detach | temporal |")
}

func TestConform(t *testing.T) {
	out, err := execute(t, "conform", "-b", "goroutine", "-b", "local", "-o", "json")
	require.NoError(t, err)

	var reports []conformance.Report
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 2)
	for _, r := range reports {
		assert.True(t, r.Passed(), "%s: %+v", r.Backend, r.Outcomes)
		assert.Len(t, r.Outcomes, len(conformance.Checks()))
	}
}

func TestConformTable(t *testing.T) {
	t.Setenv("NATS_URL", "")
	out, err := execute(t, "conform", "-b", "pool", "--events", "-v")
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("PASS pool: %d checks, 0 failed", len(conformance.Checks())))
	assert.Contains(t, out, "Outcomes")
}

func TestConformRejectsUnknownBackends(t *testing.T) {
	_, err := execute(t, "conform", "-b", "tokio")
	require.ErrorContains(t, err, `unknown backend "tokio"`)
}

func TestEventsSchema(t *testing.T) {
	out, err := execute(t, "events", "schema")
	require.NoError(t, err)
	assert.Equal(t, int64(5), gjson.Get(out, "oneOf.#").Int())

	out, err = execute(t, "events", "schema", "-t", "failed")
	require.NoError(t, err)
	assert.Equal(t, "failed", gjson.Get(out, "properties.type.const").String())

	_, err = execute(t, "events", "schema", "-t", "exploded")
	require.Error(t, err)
}

func TestSettingsFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "taskrt.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("pool:\n  workers: 3\n  blocking_acquire_timeout: 2s\ntemporal:\n  task_queue: ci\n"), 0o600))
	t.Setenv("TASKRT_POOL_BLOCKING_THREADS", "7")

	v := viper.New()
	require.NoError(t, initConfig(v, cfg))

	s := poolSettings(v)
	assert.Equal(t, 3, s.Workers)
	assert.Equal(t, 7, s.BlockingThreads)
	assert.Equal(t, 2*time.Second, s.BlockingAcquireTimeout)
	assert.Equal(t, "ci", temporalSettings(v).TaskQueue)
}

func TestLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "backends", "-o", "markdown")
	require.Error(t, err)

	_, err = execute(t, "--log-level", "warn", "backends", "-o", "markdown")
	require.NoError(t, err)
	assert.Equal(t, "WARN", logLevel.Level().String())
	logLevel.Set(0)
}
