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

	"github.com/dgallion1/docslot/internal/container"
	"github.com/dgallion1/docslot/internal/doctree"
)

// execute runs the root command with flags reset to their defaults.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("GENERATOR", "static")
	t.Setenv("MAPPING_RULES", "")
	t.Setenv("MERGE_RUNS", "")

	generatorName, mergeMode, rulesPath, debug = "", "", "", false
	runOutDir, runValues, runRecords, runTable, runMode = "", "", "", "", "auto"
	injectValues, injectRecords, injectTable, injectOut = "", "", "", ""
	detectOut = ""

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeSample(t *testing.T, path string) {
	t.Helper()
	_, err := execute(t, "sample", path)
	require.NoError(t, err)
}

func bodyText(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	_, tree, err := container.Load(data)
	require.NoError(t, err)
	return doctree.InnerText(tree.Body())
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSampleAndDetect(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "review.docx")
	writeSample(t, src)

	tagged := filepath.Join(dir, "tagged.docx")
	out, err := execute(t, "detect", src, "-o", tagged)
	require.NoError(t, err)

	var det struct {
		Slots []struct {
			Tag  string `json:"tag"`
			Kind string `json:"kind"`
		} `json:"slots"`
		Prompts map[string]string `json:"prompts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &det))
	assert.Equal(t, "[CLIENT_NAME]", det.Prompts["ClientName"])
	assert.NotEmpty(t, det.Slots)
	assert.FileExists(t, tagged)
}

func TestRun_DirectorySkipsLocksAndOutputs(t *testing.T) {
	in := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")
	writeSample(t, filepath.Join(in, "review.docx"))
	writeFile(t, filepath.Join(in, "~$review.docx"), "lock file")
	writeFile(t, filepath.Join(in, "review_Processed_20250101_120000.docx"), "old output")
	writeFile(t, filepath.Join(in, "notes.txt"), "notes")
	values := writeFile(t, filepath.Join(t.TempDir(), "values.json"), `{"ClientName": "Acme Corp"}`)

	out, err := execute(t, "run", in, "-o", outDir, "--values", values)
	require.NoError(t, err)
	assert.Contains(t, out, "Processed 1 of 1")

	matches, err := filepath.Glob(filepath.Join(outDir, "review_Processed_*.docx"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Contains(t, bodyText(t, matches[0]), "Annual Review for Acme Corp")
}

func TestRun_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, filepath.Join(dir, "broken.docx"), "not a zip")

	_, err := execute(t, "run", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 documents failed")
}

func TestRun_RejectsUnknownMode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "review.docx")
	writeSample(t, src)

	_, err := execute(t, "run", src, "--mode", "bulk")
	require.Error(t, err)
}

func TestInject(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "review.docx")
	writeSample(t, src)
	values := writeFile(t, filepath.Join(dir, "values.json"), `{"values": {"ClientName": "Manual Co"}}`)
	dst := filepath.Join(dir, "filled.docx")

	out, err := execute(t, "inject", src, "--values", values, "-o", dst)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Wrote "+dst))

	text := bodyText(t, dst)
	assert.Contains(t, text, "Annual Review for Manual Co")
}

func TestInject_BadRecords(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "review.docx")
	writeSample(t, src)
	records := writeFile(t, filepath.Join(dir, "records.json"), `{"not": "an array"}`)

	_, err := execute(t, "inject", src, "--records", records)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "records must be an array")
}
