package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/partner-finder/internal/config"
	"github.com/sells-group/partner-finder/internal/model"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"search", "serve", "categories"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "partner-finder", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestSearchCommand_Flags(t *testing.T) {
	for _, name := range []string{"company", "address", "place-id", "max", "type", "exclude", "describe", "out"} {
		assert.NotNil(t, searchCmd.Flags().Lookup(name), "search should have --%s", name)
	}
	assert.Equal(t, "0", searchCmd.Flags().Lookup("max").DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestCategoriesCommand(t *testing.T) {
	var out bytes.Buffer
	categoriesCmd.SetOut(&out)
	defer categoriesCmd.SetOut(nil)

	require.NoError(t, categoriesCmd.RunE(categoriesCmd, nil))
	assert.Contains(t, out.String(), "plombier")
	assert.Contains(t, out.String(), "LIBELLÉ")
}

var cands = []model.BusinessCandidate{
	{ID: "a", Name: "Plomberie Martin", Activity: "Plombier", Address: "12 Rue Oberkampf, 75011 Paris"},
}

func TestWriteResults_Stdout(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeResults(&out, "", cands))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.EqualValues(t, 1, doc["count"])
}

func TestWriteResults_Files(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "out.json")
	require.NoError(t, writeResults(nil, jsonPath, cands))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"nom": "Plomberie Martin"`)

	xlsxPath := filepath.Join(dir, "out.xlsx")
	require.NoError(t, writeResults(nil, xlsxPath, cands))
	f, err := xlsx.OpenFile(xlsxPath)
	require.NoError(t, err)
	assert.Len(t, f.Sheets[0].Rows, 2)

	err = writeResults(nil, filepath.Join(dir, "out.csv"), cands)
	require.Error(t, err)
}

func TestBuildHandler(t *testing.T) {
	c := &config.Config{}
	c.Google.Key = "k"
	c.Search.RadiusFloorM = 5000
	c.Search.RadiusStepM = 5000
	c.Search.RadiusCeilingM = 50000
	c.Describe.Provider = "openai"
	c.Server.JobTTLMinutes = 5

	h := buildHandler(context.Background(), c)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	// No OpenAI key: the describe endpoint is disabled.
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/describe", bytes.NewBufferString(`{"candidates":[{"id":"a"}]}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
