package cli

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch <file|glob>...",
		Short: "Re-run check whenever a matching file changes",
		Long: `Run check once, then watch the directories of the inputs and run it again
after matching files change. Changes arriving within the debounce interval
are handled together.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("debounce") {
				a.cfg.Watch.Debounce = debounce
			}
			for _, p := range args {
				if !doublestar.ValidatePathPattern(p) {
					return errInvalidPattern(p)
				}
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer watcher.Close()
			dirs, err := watchDirs(args)
			if err != nil {
				return err
			}
			for _, d := range dirs {
				if err := watcher.Add(d); err != nil {
					return err
				}
				a.log.Debug("Watching directory").Str("dir", d).Send()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			check := func() {
				if err := a.runCheck(out, args, a.cfg.ParseOptions()); err != nil && !errors.Is(err, errFindings) {
					printf(out, "error: %v", err)
				}
			}
			check()
			return a.watchLoop(ctx, watcher, matcher(args), a.cfg.Watch.Debounce, check)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "quiet period before re-running (default from config: 300ms)")
	return cmd
}

// watchDirs lists the directories that can hold files matching the patterns.
// Patterns containing ** watch every directory below their base.
func watchDirs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var dirs []string
	add := func(d string) {
		d = filepath.Clean(d)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	for _, p := range patterns {
		base, rest := doublestar.SplitPattern(filepath.ToSlash(p))
		base = filepath.FromSlash(base)
		if !strings.Contains(rest, "**") {
			if strings.ContainsAny(rest, "/") {
				// a meta character in a directory part, e.g. "*/x.arxml"
				matches, err := doublestar.FilepathGlob(filepath.Dir(p))
				if err != nil {
					return nil, err
				}
				for _, m := range matches {
					if fi, err := os.Stat(m); err == nil && fi.IsDir() {
						add(m)
					}
				}
				continue
			}
			add(base)
			continue
		}
		err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return dirs, nil
}

// matcher reports whether a changed path is one of the inputs
func matcher(patterns []string) func(string) bool {
	return func(name string) bool {
		name = filepath.Clean(name)
		for _, p := range patterns {
			if ok, _ := doublestar.PathMatch(filepath.Clean(p), name); ok {
				return true
			}
		}
		return false
	}
}

// watchLoop calls run once changes to matching files have been quiet for
// debounce. It returns when ctx is done or the watcher is closed.
func (a *app) watchLoop(ctx context.Context, w *fsnotify.Watcher, match func(string) bool, debounce time.Duration, run func()) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 || !match(event.Name) {
				continue
			}
			a.log.Debug("File changed").Str("file", event.Name).Str("op", event.Op.String()).Send()
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			run()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			a.log.Warn("Watcher error").Err(err).Send()
		}
	}
}
