package report

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/signalsfoundry/netintent/internal/fixture"
	"github.com/signalsfoundry/netintent/internal/intent"
	"github.com/signalsfoundry/netintent/internal/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioB(t *testing.T) *Report {
	t.Helper()
	out, err := verify.Dataset(context.Background(), fixture.ScenarioB())
	require.NoError(t, err)
	r := New(out.Topology, out.Instances)
	r.RunID = "00000000-0000-0000-0000-000000000001"
	r.GeneratedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return r
}

func TestNew(t *testing.T) {
	out, err := verify.Dataset(context.Background(), fixture.ScenarioB())
	require.NoError(t, err)
	r := New(out.Topology, out.Instances)

	_, err = uuid.Parse(r.RunID)
	assert.NoError(t, err)
	assert.Equal(t, "scenario-b", r.Topology)
	assert.True(t, r.Synthesized)
	require.Len(t, r.Defects, 1)
	assert.Equal(t, "P1<->PE2", r.Defects[0].Subject)
	require.Len(t, r.Failed(), 1)
	assert.Equal(t, "I1/P1~PE2", r.Failed()[0].ID)
	assert.Equal(t, 10, r.Accuracy.Overall.Passed)
	assert.Equal(t, 11, r.Accuracy.Overall.Total)
}

func TestWriteJSON(t *testing.T) {
	r := scenarioB(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, r, FormatJSON, Options{}))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, r.RunID, doc["run_id"])
	assert.Equal(t, "2024-05-01T12:00:00Z", doc["generated_at"])

	acc := doc["accuracy"].(map[string]any)
	cats := acc["categories"].(map[string]any)
	assert.Nil(t, cats["inter"].(map[string]any)["value"], "empty category must serialise as null")
	assert.Nil(t, cats["te"].(map[string]any)["value"])
	assert.Equal(t, 1.0, cats["intra"].(map[string]any)["value"])
	kinds := acc["kinds"].(map[string]any)
	assert.Contains(t, kinds, "I1")

	instances := doc["instances"].([]any)
	assert.Len(t, instances, 11)
	first := instances[0].(map[string]any)
	assert.Equal(t, "I1", first["kind"])
}

func TestWriteJSONL(t *testing.T) {
	r := scenarioB(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, r, FormatJSONL, Options{}))

	var types []string
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec), "line %q", sc.Text())
		assert.Equal(t, r.RunID, rec.RunID)
		types = append(types, rec.Type)
		if rec.Type == "instance" {
			require.NotNil(t, rec.Instance)
			assert.True(t, rec.Instance.Result.Evaluated)
		}
	}
	require.NoError(t, sc.Err())
	require.Len(t, types, 13)
	assert.Equal(t, "run", types[0])
	assert.Equal(t, "accuracy", types[12])
}

func TestWriteTable(t *testing.T) {
	r := scenarioB(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, r, FormatTable, Options{}))
	out := buf.String()

	assert.Contains(t, out, "Topology scenario-b")
	assert.Contains(t, out, "defect: asymmetric-link P1<->PE2")
	assert.Contains(t, out, "I1/P1~PE2")
	assert.Contains(t, out, "link not bidirectional")
	assert.NotContains(t, out, "I2/VPN1/CE1~CE2", "passing instances are hidden unless verbose")
	assert.Contains(t, out, "1 of 11 intent instances failed")
	assert.NotContains(t, out, "\x1b[", "colour disabled")

	var inter string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "inter") {
			inter = line
		}
	}
	assert.Contains(t, inter, "n/a")

	buf.Reset()
	require.NoError(t, Write(&buf, r, FormatTable, Options{Verbose: true, Color: true}))
	assert.Contains(t, buf.String(), "I2/VPN1/CE1~CE2")
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestParseFormat(t *testing.T) {
	for _, f := range Formats() {
		got, err := ParseFormat(strings.ToUpper(string(f)))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
	assert.Error(t, Write(&bytes.Buffer{}, &Report{}, Format("xml"), Options{}))
}

func TestFailedKeepsOrder(t *testing.T) {
	r := &Report{Instances: []intent.Instance{
		{ID: "b", Result: intent.Result{Evaluated: true}},
		{ID: "a", Result: intent.Result{Evaluated: true, Pass: true}},
		{ID: "c", Result: intent.Result{Evaluated: true}},
	}}
	failed := r.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, "b", failed[0].ID)
	assert.Equal(t, "c", failed[1].ID)
}
