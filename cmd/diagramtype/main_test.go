package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/diagramtype/service"
)

// run executes the CLI against an isolated config file.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), "diagramtype.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("{}\n"), 0644))

	cmd := rootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func TestDetect_Stdin(t *testing.T) {
	out, err := run(t, "%%{init: {\"theme\": \"dark\"}}%%\nsequenceDiagram\n  A->>B: hi\n", "detect")
	require.NoError(t, err)
	assert.Equal(t, "sequence\tmermaid/diagrams/sequence\n", out)
}

func TestDetect_StdinJSON(t *testing.T) {
	out, err := run(t, "erDiagram\n", "detect", "--json", "-")
	require.NoError(t, err)

	var res service.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "er", res.Key)
	assert.Equal(t, "mermaid/diagrams/er", res.Locator)
}

func TestDetect_Default(t *testing.T) {
	out, err := run(t, "A-->B", "--no-builtins", "detect")
	require.NoError(t, err)
	assert.Equal(t, "flowchart\t\n", out)
}

func TestDetect_Files(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mmd"), []byte("pie\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.md"), []byte("# Doc\n\n```mermaid\ngantt\n```\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("pie\n"), 0644))

	out, err := run(t, "", "detect", "--json", dir)
	require.NoError(t, err)

	var results []service.FileResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)

	keys := map[string]string{}
	for _, r := range results {
		keys[filepath.Base(r.Path)] = r.Key
	}
	assert.Equal(t, map[string]string{"a.mmd": "pie", "doc.md": "gantt"}, keys)
}

func TestDetect_Glob(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "j.mmd"), []byte("journey\n"), 0644))

	out, err := run(t, "", "detect", filepath.Join(dir, "**", "*.mmd"))
	require.NoError(t, err)
	assert.Contains(t, out, "j.mmd:1")
	assert.Contains(t, out, "journey")
	assert.Contains(t, out, "mermaid/diagrams/user-journey")
}

func TestDetect_NoMatches(t *testing.T) {
	_, err := run(t, "", "detect", filepath.Join(t.TempDir(), "*.mmd"))
	assert.Error(t, err)
}

func TestDetect_Rules(t *testing.T) {
	rulesPath := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(rulesPath, []byte(`
rules:
  - key: "sankey"
    pattern: "^\\s*sankey-beta"
    locator: "local/sankey"
`), 0644))

	out, err := run(t, "sankey-beta\n", "--rules", rulesPath, "detect")
	require.NoError(t, err)
	assert.Equal(t, "sankey\tlocal/sankey\n", out)
}

func TestDetect_BadRules(t *testing.T) {
	rulesPath := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(rulesPath, []byte("rules:\n  - key: \"bad\"\n    pattern: \"(\"\n"), 0644))

	_, err := run(t, "x", "--rules", rulesPath, "detect")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	out, err := run(t, "%%{init: {}}%%\ngraph TD %% trailing\nA-->B", "normalize")
	require.NoError(t, err)
	assert.Equal(t, "\ngraph TD\nA-->B", out)
}

func TestList(t *testing.T) {
	out, err := run(t, "", "list")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(lines[0], "error"))
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "journey"))
}

func TestLocate(t *testing.T) {
	out, err := run(t, "", "locate", "gitGraph")
	require.NoError(t, err)
	assert.Equal(t, "mermaid/diagrams/git\n", out)

	_, err = run(t, "", "locate", "nope")
	assert.Error(t, err)
}

func TestExplain(t *testing.T) {
	out, err := run(t, "stateDiagram-v2\n", "explain")
	require.NoError(t, err)
	assert.Contains(t, out, "=> stateDiagram")
	assert.Regexp(t, `(?m)^stateDiagram\s+match$`, out)
	// Later detectors are still evaluated
	assert.Regexp(t, `(?m)^state\s+match$`, out)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}
