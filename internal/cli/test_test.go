package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const failingScenario = `name: wrong_expectation
description: "Expects a topic that was never set"
room_version: "10"
batches:
  - - event_id: $create
      type: m.room.create
      state_key: ""
      sender: "@alice:example.org"
      content: { creator: "@alice:example.org" }
expect:
  state:
    - { type: m.room.topic, state_key: "", event_id: $topic }
`

func TestTestCommand_Passes(t *testing.T) {
	out, err := execute(t, NewTestCommand(testOptions(t, "text")), "testdata/scenarios/*.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ ban_vs_topic")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_JSON(t *testing.T) {
	out, err := execute(t, NewTestCommand(testOptions(t, "json")), "testdata/scenarios/*.yaml")
	require.NoError(t, err)

	var result TestResult
	decodeData(t, out, &result)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Passed)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "match", result.Scenarios[0].Golden)
}

func TestTestCommand_NoScenarios(t *testing.T) {
	pattern := filepath.Join(t.TempDir(), "**", "*.yaml")
	out, err := execute(t, NewTestCommand(testOptions(t, "text")), pattern)
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommand_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "scenarios", "wrong.yaml"), failingScenario)

	out, err := execute(t, NewTestCommand(testOptions(t, "text")), filepath.Join(dir, "scenarios", "*.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_expectation")
	assert.Contains(t, out, "Assertion failed: state")
	assert.Contains(t, out, "0 passed, 1 failed")
}

func TestTestCommand_LoadErrorCountsAsFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "scenarios", "broken.yaml"), "name: [\n")

	out, err := execute(t, NewTestCommand(testOptions(t, "text")), filepath.Join(dir, "scenarios", "*.yaml"))
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "load error")
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	goldenDir := t.TempDir()
	writeFile(t, filepath.Join(goldenDir, "ban_vs_topic.golden"), "{}")

	out, err := execute(t, NewTestCommand(testOptions(t, "text")), "--golden-dir", goldenDir, "testdata/scenarios/*.yaml")
	require.Error(t, err)
	assert.Contains(t, out, "golden file mismatch")
}

func TestTestCommand_UpdateWritesGolden(t *testing.T) {
	goldenDir := filepath.Join(t.TempDir(), "golden")

	out, err := execute(t, NewTestCommand(testOptions(t, "text")), "--update", "--golden-dir", goldenDir, "testdata/scenarios/*.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ ban_vs_topic (golden updated)")

	got, err := os.ReadFile(filepath.Join(goldenDir, "ban_vs_topic.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile("testdata/golden/ban_vs_topic.golden")
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("testdata", "golden", "x.golden"),
		goldenFilePath("", filepath.Join("testdata", "scenarios", "x.yaml"), "x"))
	assert.Equal(t, filepath.Join("out", "named.golden"),
		goldenFilePath("out", filepath.Join("testdata", "scenarios", "x.yaml"), "named"))
}
