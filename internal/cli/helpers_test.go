package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const roomEvents = "testdata/events/ban_vs_topic.yaml"

// execute runs cmd with args and returns stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func testOptions(t *testing.T, format string) *RootOptions {
	t.Helper()
	return &RootOptions{
		Format:      format,
		Database:    filepath.Join(t.TempDir(), "test.db"),
		RoomVersion: "10",
	}
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// decodeData unmarshals the data field of a JSON CLI response.
func decodeData(t *testing.T, out string, dst any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, dst))
}
