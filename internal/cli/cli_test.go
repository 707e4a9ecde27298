package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errmgr "github.com/debabrota1604/pdfTranslator/internal/errors"
	"github.com/debabrota1604/pdfTranslator/internal/pdf"
	"github.com/debabrota1604/pdfTranslator/internal/pdf/pdftest"
	"github.com/debabrota1604/pdfTranslator/internal/pipeline"
	"github.com/debabrota1604/pdfTranslator/internal/results"
)

// resetFlags puts every flag back to its default; cobra keeps flag values
// between Execute calls on the same command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// run executes pdft with a fresh state dir and no config file.
func run(t *testing.T, state string, args ...string) (string, error) {
	t.Helper()
	resetFlags(RootCmd)
	t.Setenv("PDFT_BATCH_STATE_DIR", state)
	t.Setenv("PDFT_LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	var out, errOut bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&errOut)
	RootCmd.SetArgs(append([]string{"--config", filepath.Join(state, "none.yaml"), "--log-level", "error"}, args...))
	err := RootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func sampleDoc(t *testing.T, dir string) string {
	t.Helper()
	return pdftest.Write(t, dir, "sample.pdf",
		pdftest.Letter(pdftest.ShowText(72, 720, 12, "Hello World")+"\n"+pdftest.ShowText(72, 500, 12, "Second block")))
}

func TestExtractAndMerge(t *testing.T) {
	dir, state := t.TempDir(), t.TempDir()
	input := sampleDoc(t, dir)

	out, err := run(t, state, "extract", input)
	require.NoError(t, err)
	assert.Contains(t, out, "1 pages, 2 blocks")

	paths := pipeline.DerivePaths(input)
	require.NoError(t, os.WriteFile(paths.Translated, []byte("<0>Hallo Welt</0>\n<1>Zweiter Block</1>"), 0644))

	out, err = run(t, state, "merge", "--verify", input)
	require.NoError(t, err)
	assert.Contains(t, out, "2 translated")

	doc, err := pdf.NewPDFParser().Extract(pipeline.DefaultOutputPath(input))
	require.NoError(t, err)
	var texts []string
	for _, b := range doc.Blocks() {
		texts = append(texts, b.Text)
	}
	assert.Equal(t, []string{"Hallo Welt", "Zweiter Block"}, texts)

	rm, err := results.NewResultManager(filepath.Join(state, "runs"))
	require.NoError(t, err)
	records, err := rm.List()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "merge", records[0].Command)
	assert.Equal(t, results.StatusComplete, records[0].Status)

	out, err = run(t, state, "runs", "last", input)
	require.NoError(t, err)
	assert.Contains(t, out, records[0].ID)

	_, err = run(t, state, "runs", "delete", records[0].ID)
	require.NoError(t, err)
	_, err = run(t, state, "runs", "last", input)
	assert.Error(t, err, "the only merge run was deleted")
}

func TestMergeWithoutLayoutFails(t *testing.T) {
	dir, state := t.TempDir(), t.TempDir()
	input := sampleDoc(t, dir)
	_, err := run(t, state, "merge", input)
	require.Error(t, err)

	rm, err := results.NewResultManager(filepath.Join(state, "runs"))
	require.NoError(t, err)
	records, _ := rm.List()
	require.Len(t, records, 1)
	assert.Equal(t, results.StatusError, records[0].Status)
}

func TestInfoJSON(t *testing.T) {
	input := sampleDoc(t, t.TempDir())
	out, err := run(t, t.TempDir(), "info", "-f", "json", input)
	require.NoError(t, err)

	var info pdf.PDFInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, 1, info.PageCount)
	assert.True(t, info.IsTextPDF)
	require.Len(t, info.Pages, 1)
	assert.InDelta(t, 612, info.Pages[0].Width, 0.01)
}

func TestPromptUsesTargetLanguage(t *testing.T) {
	dir, state := t.TempDir(), t.TempDir()
	input := sampleDoc(t, dir)
	_, err := run(t, state, "extract", input)
	require.NoError(t, err)

	out, err := run(t, state, "prompt", "--lang", "Bengali", input)
	require.NoError(t, err)
	assert.Contains(t, out, "Bengali")
	assert.Contains(t, out, "2 blocks")
}

func TestTranslateRequiresAPIKey(t *testing.T) {
	dir, state := t.TempDir(), t.TempDir()
	input := sampleDoc(t, dir)
	_, err := run(t, state, "extract", input)
	require.NoError(t, err)

	_, err = run(t, state, "translate", input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestBatchRecordsFailures(t *testing.T) {
	dir, state := t.TempDir(), t.TempDir()
	good := sampleDoc(t, dir)
	bad := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("not a pdf"), 0644))
	// outputs of earlier merges are skipped
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old_translated.pdf"), []byte("x"), 0644))

	out, err := run(t, state, "batch", "-w", "2", dir)
	require.Error(t, err, "a failed document fails the command")
	assert.Contains(t, out, "1 of 2 documents succeeded")
	assert.FileExists(t, pipeline.DerivePaths(good).Layout)

	ledger, err := errmgr.NewErrorManager(state)
	require.NoError(t, err)
	rec, ok := ledger.GetError(bad)
	require.True(t, ok)
	assert.Equal(t, errmgr.StageExtract, rec.Stage)
	assert.True(t, rec.CanRetry)

	// Fix the document and retry from the ledger.
	pdftest.Write(t, dir, "broken.pdf", pdftest.Letter(pdftest.ShowText(72, 700, 12, "Fixed")))
	_, err = run(t, state, "batch", "--retry-failed")
	require.NoError(t, err)

	ledger, err = errmgr.NewErrorManager(state)
	require.NoError(t, err)
	assert.Empty(t, ledger.ListErrors())
}

func TestBatchRejectsUnknownMode(t *testing.T) {
	input := sampleDoc(t, t.TempDir())
	_, err := run(t, t.TempDir(), "batch", "--mode", "sideways", input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown batch mode")
}

func TestConfigInitAndShow(t *testing.T) {
	state := t.TempDir()
	path := filepath.Join(state, "pdft.yaml")

	_, err := run(t, state, "config", "init", path)
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = run(t, state, "config", "init", path)
	require.Error(t, err, "an existing file is not overwritten")

	out, err := run(t, state, "config", "show", "-p", "xliff")
	require.NoError(t, err)
	assert.Contains(t, out, "pipeline: xliff")
	assert.Contains(t, out, "min_font_size: 6")
}

func TestInvalidOverrideRejected(t *testing.T) {
	_, err := run(t, t.TempDir(), "config", "show", "-p", "carrier-pigeon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline")
}

func TestFindPDFs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.PDF", "a_translated.pdf", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	found, err := findPDFs(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.PDF"), filepath.Join(dir, "b.pdf")}, found)
}

func TestCollectInputsFromList(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "inputs.txt")
	require.NoError(t, os.WriteFile(list, []byte("# failed last night\nx.pdf\n\ny.pdf\nx.pdf\n"), 0644))
	inputs, err := collectInputs(nil, list)
	require.NoError(t, err)
	assert.Equal(t, []string{"x.pdf", "y.pdf"}, dedupe(inputs))

	_, err = collectInputs([]string{filepath.Join(dir, "missing.pdf")}, "")
	assert.Error(t, err)
}

func TestWatcherMergesSettledFile(t *testing.T) {
	dir, state := t.TempDir(), t.TempDir()
	input := sampleDoc(t, dir)
	_, err := run(t, state, "extract", input)
	require.NoError(t, err)

	msgs := make(chan string, 4)
	w := newWatcher(cfg, false, func(msg string) { msgs <- msg })
	translated := pipeline.TranslatedPath(pipeline.TypeDirect, input)
	require.NoError(t, os.WriteFile(translated, []byte("<0>Hola</0>"), 0644))

	w.touch(context.Background(), translated)
	w.touch(context.Background(), translated)
	w.touch(context.Background(), filepath.Join(dir, "notes.txt"))

	select {
	case msg := <-msgs:
		assert.True(t, strings.HasPrefix(msg, "merged "), msg)
	case <-time.After(10 * time.Second):
		t.Fatal("watcher never merged")
	}
	w.stop()
	assert.Len(t, msgs, 0, "repeated writes merge once")
	assert.FileExists(t, pipeline.DefaultOutputPath(input))
}
