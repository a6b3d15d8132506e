package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	path := writeScenario(t, `
name: minimal
description: "smallest valid scenario"
start: "2026-03-02 13:00"
printers: [Alpha]
cycles:
  - {}
`)
	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "minimal", scenario.Name)
	assert.Len(t, scenario.Cycles, 1)
}

func TestLoadScenario_UnknownFieldRejected(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "has a typo"
start: "2026-03-02 13:00"
printers: [Alpha]
cicles:
  - {}
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
}

func TestLoadScenario_MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "no name",
			content: `
description: "x"
start: "2026-03-02 13:00"
printers: [Alpha]
cycles: [{}]
`,
			wantErr: "name is required",
		},
		{
			name: "no printers",
			content: `
name: x
description: "x"
start: "2026-03-02 13:00"
cycles: [{}]
`,
			wantErr: "printers list is required",
		},
		{
			name: "no cycles",
			content: `
name: x
description: "x"
start: "2026-03-02 13:00"
printers: [Alpha]
`,
			wantErr: "cycles list is required",
		},
		{
			name: "bad start",
			content: `
name: x
description: "x"
start: "next tuesday"
printers: [Alpha]
cycles: [{}]
`,
			wantErr: "start",
		},
		{
			name: "unknown telemetry printer",
			content: `
name: x
description: "x"
start: "2026-03-02 13:00"
printers: [Alpha]
cycles:
  - telemetry:
      Beta: { state: RUNNING }
`,
			wantErr: "unknown printer",
		},
		{
			name: "duplicate printer",
			content: `
name: x
description: "x"
start: "2026-03-02 13:00"
printers: [Alpha, Alpha]
cycles: [{}]
`,
			wantErr: "duplicate printer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario("testdata/does-not-exist.yaml")
	require.Error(t, err)
}
