package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vector-viz/config"
	"vector-viz/sink"
)

// run executes the command line with args and returns its output
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFixture(t *testing.T, dir string, extra ...string) string {
	t.Helper()
	path := filepath.Join(dir, "fixture.json")
	args := append([]string{"fixture", "-o", path, "--count", "30", "--clusters", "3", "--dims", "8"}, extra...)
	out, err := run(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 30 records in 3 clusters")
	return path
}

func TestExportFromFixture(t *testing.T) {
	dir := t.TempDir()
	fixture := writeFixture(t, dir)
	output := filepath.Join(dir, "out", "embedding.csv")

	out, err := run(t, "--fixture", fixture, "export", "-o", output, "--dims", "2", "--batch-size", "7", "--workers", "3", "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 30 rows")

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	table, err := sink.ReadCSV(f, ',', 2)
	require.NoError(t, err)
	assert.Equal(t, 30, table.Len())
	assert.Equal(t, []string{"id", "x", "y", "category", "cluster", "text"}, table.Header())
	for _, row := range table.Rows {
		for _, c := range row.Coords {
			assert.GreaterOrEqual(t, c, 0.0)
			assert.LessOrEqual(t, c, 1.0)
		}
	}
}

func TestExportMetadataOnly(t *testing.T) {
	dir := t.TempDir()
	fixture := writeFixture(t, dir, "--missing-every", "5")
	output := filepath.Join(dir, "meta.csv")

	// vectors required: records without values are dropped
	_, err := run(t, "--fixture", fixture, "export", "-o", output, "-q")
	require.NoError(t, err)
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 1+24)

	// metadata export keeps them
	_, err = run(t, "--fixture", fixture, "export", "-o", output, "--no-projection", "-q")
	require.NoError(t, err)
	data, err = os.ReadFile(output)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 1+30)
	assert.True(t, strings.HasPrefix(lines[1], "doc-00000,0,0,0,"))
}

func TestExportEmptyNamespace(t *testing.T) {
	dir := t.TempDir()
	fixture := writeFixture(t, dir)
	output := filepath.Join(dir, "empty.csv")

	out, err := run(t, "--fixture", fixture, "export", "-n", "other", "-o", output)
	require.NoError(t, err)
	assert.Contains(t, out, "No vectors found")
	assert.NoFileExists(t, output)
}

func TestExportMissingCredentials(t *testing.T) {
	t.Setenv("PINECONE_API_KEY", "")
	t.Setenv("PINECONE_INDEX", "")

	_, err := run(t, "--env-file", filepath.Join(t.TempDir(), ".env.none"), "export")
	assert.Error(t, err, "an explicit env file must exist")

	_, err = run(t, "export", "-o", filepath.Join(t.TempDir(), "x.csv"))
	assert.ErrorIs(t, err, config.ErrMissingAPIKey)
}

func TestExportInvalidFlags(t *testing.T) {
	_, err := run(t, "export", "--dims", "4")
	assert.ErrorContains(t, err, "invalid dimensions")

	_, err = run(t, "export", "--batch-size", "0")
	assert.ErrorContains(t, err, "invalid batch size")
}

func TestEnvFile(t *testing.T) {
	dir := t.TempDir()
	fixture := writeFixture(t, dir)
	output := filepath.Join(dir, "from-env.csv")
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("VIZ_OUTPUT="+output+"\nVIZ_DIMS=2\n"), 0644))
	t.Cleanup(func() {
		os.Unsetenv("VIZ_OUTPUT")
		os.Unsetenv("VIZ_DIMS")
	})

	_, err := run(t, "--env-file", envFile, "--fixture", fixture, "export", "-q")
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "id,x,y,category"))
}

func TestCheckFixture(t *testing.T) {
	fixture := writeFixture(t, t.TempDir(), "-n", "docs")

	out, err := run(t, "--fixture", fixture, "check")
	require.NoError(t, err)
	assert.Contains(t, out, `"docs"`)
	assert.Contains(t, out, "30 records")
}

func TestCheckPinecone(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Api-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/indexes":
			json.NewEncoder(w).Encode(map[string]any{"indexes": []map[string]any{{"name": "docs", "dimension": 8, "metric": "cosine"}}})
		case "/indexes/docs":
			json.NewEncoder(w).Encode(map[string]any{"name": "docs", "host": server.URL, "status": map[string]any{"ready": true, "state": "Ready"}})
		case "/describe_index_stats":
			w.Write([]byte(`{"namespaces":{"":{"vectorCount":12},"archive":{"vectorCount":3}},"dimension":8,"totalVectorCount":15}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
pinecone:
  api_key: secret
  index: docs
  control_url: `+server.URL+`
log_level: error
`), 0644))

	out, err := run(t, "--config", cfgPath, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "docs (dimension 8, metric cosine)")
	assert.Contains(t, out, "state Ready")
	assert.Contains(t, out, "Total vectors: 15")
	assert.Contains(t, out, `"archive"`)
}

func TestBadConfigFile(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.json"), "check")
	assert.ErrorContains(t, err, "failed to load config")
}
