package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"modelsync/internal/ledger"
	"modelsync/internal/models"
)

// writeFixtureModel writes a minimal metadata.json under root, the way the
// worker pipeline would at its commit point (step 7), so scan/usage/dupes
// have something real to find.
func writeFixtureModel(t *testing.T, root string, id int, name, modelType, baseModel string) string {
	t.Helper()
	dir := filepath.Join(root, modelType, baseModel, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	info := models.ModelInfo{ID: id, Name: name, Type: modelType, BaseModel: baseModel, Path: dir}
	data, err := json.MarshalIndent(info, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0o644))
	return dir
}

func writeFixtureConfig(t *testing.T, saveRoot string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	content := "SavePath = \"" + saveRoot + "\"\n" +
		"DatabasePath = \"" + filepath.Join(saveRoot, "ledger") + "\"\n" +
		"BleveIndexPath = \"" + filepath.Join(saveRoot, "index.bleve") + "\"\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))
	return cfgPath
}

func TestScanUsageAndDupesEndToEnd(t *testing.T) {
	root := t.TempDir()
	writeFixtureModel(t, root, 1, "Neon Dreams", "Checkpoint", "SDXL")
	writeFixtureModel(t, root, 2, "Neon Dreams", "Checkpoint", "SDXL")
	cfgPath := writeFixtureConfig(t, root)

	rootCmd.SetArgs([]string{"scan", "--config", cfgPath})
	require.NoError(t, rootCmd.Execute())

	rootCmd.SetArgs([]string{"usage", "--config", cfgPath})
	require.NoError(t, rootCmd.Execute())

	rootCmd.SetArgs([]string{"dupes", "--config", cfgPath})
	require.NoError(t, rootCmd.Execute())

	rootCmd.SetArgs([]string{"orphans", "--config", cfgPath})
	require.NoError(t, rootCmd.Execute())
}

func TestHistoryReadsLedgerEntries(t *testing.T) {
	root := t.TempDir()
	cfgPath := writeFixtureConfig(t, root)

	led, err := ledger.Open(filepath.Join(root, "ledger"))
	require.NoError(t, err)
	require.NoError(t, led.Record(models.LedgerEntry{
		Url:    "https://civitai.com/models/42",
		Status: models.StatusCompleted,
		Path:   filepath.Join(root, "Checkpoint", "SDXL", "Neon Dreams"),
	}))
	require.NoError(t, led.Close())

	rootCmd.SetArgs([]string{"history", "--config", cfgPath})
	require.NoError(t, rootCmd.Execute())

	rootCmd.SetArgs([]string{"history", "https://civitai.com/models/42", "--config", cfgPath})
	require.NoError(t, rootCmd.Execute())
}

// Each Execute() call rebuilds the app bundle fresh, the same as a separate
// OS process would: the queue is deliberately in-memory and process-scoped
// (no resumable downloads), so this only smoke-tests that each subcommand
// runs cleanly against an empty queue, not that state carries between them.
func TestQueueSubcommandsRunIndependently(t *testing.T) {
	root := t.TempDir()
	cfgPath := writeFixtureConfig(t, root)

	rootCmd.SetArgs([]string{"enqueue", "https://civitai.com/models/1", "https://civitai.com/models/2", "--config", cfgPath})
	require.NoError(t, rootCmd.Execute())

	rootCmd.SetArgs([]string{"queue", "list", "--config", cfgPath})
	require.NoError(t, rootCmd.Execute())

	rootCmd.SetArgs([]string{"queue", "clear", "--config", cfgPath})
	require.NoError(t, rootCmd.Execute())
}

func TestBandwidthCommandRuns(t *testing.T) {
	root := t.TempDir()
	cfgPath := writeFixtureConfig(t, root)

	rootCmd.SetArgs([]string{"bandwidth", "--config", cfgPath})
	require.NoError(t, rootCmd.Execute())
}
