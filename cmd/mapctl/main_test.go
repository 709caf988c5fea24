package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedCSV = "../../data/seed/carpenter.csv"

const twoStates = `State,GL_Premium_Low,GL_Premium_High,GL_Savings,GL_Competitiveness,WC_Rate_5437,WC_Rate_5645
GA,2.8,5.0,19,75,8.98,43.42
NC,0.6,1.9,12,60,5.60,
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestImportExportRoundTrip(t *testing.T) {
	dataFile := filepath.Join(t.TempDir(), "datasets.json")
	csvPath := writeFile(t, "carpenter.csv", twoStates)

	out, err := execute(t, "--data-file", dataFile, "import", "carpenter", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "imported carpenter: 2 states, class codes 5437, 5645")
	assert.Contains(t, out, "missing 48 states")

	out, err = execute(t, "--data-file", dataFile, "export", "carpenter")
	require.NoError(t, err)
	assert.Contains(t, out, "State,GL_Premium_Low,GL_Premium_High,GL_Savings,GL_Competitiveness,WC_Rate_5437,WC_Rate_5645\n")
	assert.Contains(t, out, "\nGA,2.8,")
	assert.Contains(t, out, "\nNC,0.6,1.9,12,60,")

	out, err = execute(t, "--data-file", dataFile, "trades")
	require.NoError(t, err)
	assert.Contains(t, out, "TRADE")
	assert.Contains(t, out, "carpenter")
}

func TestImport_InvalidCSVFails(t *testing.T) {
	dataFile := filepath.Join(t.TempDir(), "datasets.json")
	csvPath := writeFile(t, "bad.csv", "State,GL_Premium_Low\nGA,1\n")

	_, err := execute(t, "--data-file", dataFile, "import", "carpenter", csvPath)
	require.Error(t, err)

	_, err = execute(t, "--data-file", dataFile, "export", "carpenter")
	assert.Error(t, err, "nothing should have been stored")
}

func TestDelete(t *testing.T) {
	dataFile := filepath.Join(t.TempDir(), "datasets.json")
	_, err := execute(t, "--data-file", dataFile, "import", "carpenter", seedCSV)
	require.NoError(t, err)

	out, err := execute(t, "--data-file", dataFile, "delete", "carpenter")
	require.NoError(t, err)
	assert.Equal(t, "deleted carpenter (50 states)\n", out)

	_, err = execute(t, "--data-file", dataFile, "delete", "carpenter")
	assert.Error(t, err)
}

func TestDataFileFromEnvironment(t *testing.T) {
	dataFile := filepath.Join(t.TempDir(), "datasets.json")
	t.Setenv("INSURANCE_MAPS_DATA_FILE", dataFile)

	_, err := execute(t, "import", "carpenter", seedCSV)
	require.NoError(t, err)
	assert.FileExists(t, dataFile)
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", seedCSV)
	require.NoError(t, err)
	assert.Contains(t, out, "trade:       carpenter")
	assert.Contains(t, out, "PASS: all 50 states present")

	partial := writeFile(t, "carpenter.csv", twoStates)
	out, err = execute(t, "validate", partial)
	require.ErrorIs(t, err, errIncomplete)
	assert.Contains(t, out, "FAIL: 48 states missing")
	assert.Contains(t, out, "NC: no WC rate for class 5645")
}

func TestValidate_TradeFromFlag(t *testing.T) {
	path := writeFile(t, "upload-2026.csv", twoStates)

	_, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--trade")

	out, err := execute(t, "validate", "--trade", "plumber", path)
	require.ErrorIs(t, err, errIncomplete)
	assert.Contains(t, out, "trade:       plumber")
}

func TestRender(t *testing.T) {
	dataFile := filepath.Join(t.TempDir(), "datasets.json")
	_, err := execute(t, "--data-file", dataFile, "import", "carpenter", seedCSV)
	require.NoError(t, err)

	htmlPath := filepath.Join(t.TempDir(), "carpenter.html")
	_, err = execute(t, "--data-file", dataFile, "render", "carpenter", "--state", "TX", "-o", htmlPath)
	require.NoError(t, err)
	page, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(page), "<svg")
	assert.Contains(t, string(page), "Texas")

	out, err := execute(t, "--data-file", dataFile, "render", "carpenter", "--metric", "wcRate", "--class", "5645", "--json")
	require.NoError(t, err)
	var snap struct {
		Metric  string         `json:"metric"`
		Buckets map[string]int `json:"buckets"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, "wcRate5645", snap.Metric)
	assert.Len(t, snap.Buckets, 50)
}

func TestRender_Errors(t *testing.T) {
	dataFile := filepath.Join(t.TempDir(), "datasets.json")
	_, err := execute(t, "--data-file", dataFile, "import", "carpenter", seedCSV)
	require.NoError(t, err)

	_, err = execute(t, "--data-file", dataFile, "render", "carpenter", "--metric", "bogus")
	assert.Error(t, err)

	_, err = execute(t, "--data-file", dataFile, "render", "carpenter", "--state", "ZZ")
	assert.Error(t, err)

	_, err = execute(t, "--data-file", dataFile, "render", "carpenter", "--metric", "wcRate9999")
	assert.Error(t, err, "class code not in dataset")

	_, err = execute(t, "--data-file", dataFile, "render", "plumber")
	assert.Error(t, err)
}
