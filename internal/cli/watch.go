package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/debabrota1604/pdfTranslator/internal/logger"
	"github.com/debabrota1604/pdfTranslator/internal/pipeline"
	"github.com/debabrota1604/pdfTranslator/internal/results"
	"github.com/debabrota1604/pdfTranslator/internal/types"
)

// watchSettle is how long a translated file must stay unchanged before it
// is merged. Editors and CAT tools often write a file in several steps.
const watchSettle = 750 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Merge translated files as they appear in a directory",
	Long: `watch merges <doc>_translated.txt, .xlf and .tgt files whenever they are
written, using the pipeline their suffix names. The config file is watched
as well; render settings changed there apply to the next merge.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		verify, _ := cmd.Flags().GetBool("verify")
		w := newWatcher(cfg, verify, func(msg string) { fmt.Fprintln(cmd.OutOrStdout(), msg) })
		cfgManager.OnChange(w.setConfig)
		cfgManager.Watch()

		fw, err := fsnotify.NewWatcher()
		if err != nil {
			return types.NewAppError(types.ErrInternal, "failed to create file watcher", err)
		}
		defer fw.Close()
		if err := fw.Add(args[0]); err != nil {
			return types.NewAppErrorWithDetails(types.ErrFileNotFound, "cannot watch directory", args[0], err)
		}
		logger.Info("watching for translated files", logger.String("dir", args[0]))
		fmt.Fprintf(cmd.OutOrStdout(), "watching %s, Ctrl-C to stop\n", args[0])

		for {
			select {
			case <-ctx.Done():
				w.stop()
				return nil
			case err, ok := <-fw.Errors:
				if !ok {
					return nil
				}
				logger.Warn("file watcher error", logger.Err(err))
			case ev, ok := <-fw.Events:
				if !ok {
					return nil
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					w.touch(ctx, ev.Name)
				}
			}
		}
	},
}

// watcher merges translated files once they settle.
type watcher struct {
	mu     sync.Mutex
	cfg    types.Config
	timers map[string]*time.Timer
	wg     sync.WaitGroup
	verify bool
	report func(string)
}

func newWatcher(c *types.Config, verify bool, report func(string)) *watcher {
	return &watcher{cfg: *c, timers: map[string]*time.Timer{}, verify: verify, report: report}
}

func (w *watcher) setConfig(c *types.Config) {
	w.mu.Lock()
	w.cfg = *c
	w.mu.Unlock()
}

// touch schedules a merge for path, pushing back one already pending.
// Paths that are not translated files are ignored.
func (w *watcher) touch(ctx context.Context, path string) {
	input, typ, ok := pipeline.InputForTranslated(path)
	if !ok {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, pending := w.timers[path]; pending && t.Stop() {
		t.Reset(watchSettle)
		return
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(watchSettle, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.timers[path] == t {
			delete(w.timers, path)
		}
		c := w.cfg
		w.mu.Unlock()
		w.merge(ctx, c, input, path, typ)
	})
	w.timers[path] = t
}

// stop cancels pending merges and waits for running ones.
func (w *watcher) stop() {
	w.mu.Lock()
	for path, t := range w.timers {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.timers, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// merge rebuilds input from one translated file. Failures are logged; the
// watch keeps running.
func (w *watcher) merge(ctx context.Context, c types.Config, input, translated string, typ pipeline.PipelineType) {
	c.Pipeline = string(typ)
	opts, warnings := pipeline.OptionsFromConfig(&c)
	for _, warning := range warnings {
		logger.Warn(warning)
	}
	p, err := pipeline.New(c.Pipeline, opts)
	if err != nil {
		logger.Error("cannot create pipeline", err)
		return
	}
	if _, err := os.Stat(pipeline.DerivePaths(input).Layout); err != nil {
		logger.Warn("no layout for translated file, run extract first",
			logger.String("translated", filepath.Base(translated)))
		return
	}

	_ = recordRun("watch", input, func(rec *results.RunRecord) error {
		rec.Pipeline = c.Pipeline
		res, err := runMerge(ctx, p, input, "", translated, "", w.verify)
		if res != nil {
			rec.Output = res.Output
			rec.Blocks = res.BlocksProcessed
			rec.Warnings = res.Warnings
		}
		if err != nil {
			logger.Error("merge failed", err, logger.String("input", input))
			return err
		}
		w.report(fmt.Sprintf("merged %s -> %s (%d warnings)", filepath.Base(translated), res.Output, len(res.Warnings)))
		return nil
	})
}

func init() {
	watchCmd.Flags().Bool("verify", false, "check page count and page sizes of every output")
	RootCmd.AddCommand(watchCmd)
}
