package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/protectag/internal/logger"
	"github.com/cognicore/protectag/pkg/protectag"
	"github.com/cognicore/protectag/pkg/protectag/progress"
)

var (
	batchShops  []string
	cleanSweep  bool
	promptIntro string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Classify candidate products and reconcile their marker tags",
	Long: `Evaluate pages through each shop's catalog, classifies every candidate and
rewrites its marker tags. Progress is written to stdout as NDJSON, one line
per record, each carrying a "shop" field. Several shops run concurrently.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine(cmd.Context(), cfg, logger.Logger)
		if err != nil {
			return err
		}
		defer engine.Close()
		return runStreams(cmd.Context(), batchShops, os.Stdout, func(ctx context.Context, shop string) (<-chan progress.Record, error) {
			return engine.Evaluate(ctx, protectag.EvaluateRequest{Shop: shop, CleanSweep: cleanSweep, PromptIntro: promptIntro})
		})
	},
}

var clearTagsCmd = &cobra.Command{
	Use:   "clear-tags",
	Short: "Remove every marker tag from each shop's catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine(cmd.Context(), cfg, logger.Logger)
		if err != nil {
			return err
		}
		defer engine.Close()
		return runStreams(cmd.Context(), batchShops, os.Stdout, func(ctx context.Context, shop string) (<-chan progress.Record, error) {
			return engine.ClearMarkers(ctx, protectag.ClearRequest{Shop: shop})
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{evaluateCmd, clearTagsCmd} {
		c.Flags().StringSliceVar(&batchShops, "shop", nil, "shop domain; repeat or comma-separate for several")
		_ = c.MarkFlagRequired("shop")
	}
	evaluateCmd.Flags().BoolVar(&cleanSweep, "clean-sweep", false, "re-evaluate products that already carry an on/off marker")
	evaluateCmd.Flags().StringVar(&promptIntro, "prompt-intro", "", "override the shop's stored prompt intro")
}

type startFunc func(ctx context.Context, shop string) (<-chan progress.Record, error)

// runStreams runs one stream per shop and writes every record to out as a
// line tagged with its shop. Shops run independently: a shop that fails to
// start or ends with a stream error does not stop the others, and the
// combined failures are returned once every shop has finished. Item errors
// only show up in the output. A failed write to out stops every shop.
func runStreams(ctx context.Context, shops []string, out io.Writer, start startFunc) error {
	w := &lineWriter{w: out}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	fail := func(err error) {
		mu.Lock()
		errs = errors.CombineErrors(errs, err)
		mu.Unlock()
	}
	for _, shop := range dedupe(shops) {
		g.Go(func() error {
			ch, err := start(ctx, shop)
			if err != nil {
				fail(errors.Wrap(err, shop))
				return nil
			}
			var streamErr error
			for rec := range ch {
				if se, ok := rec.(progress.StreamError); ok {
					streamErr = errors.Newf("%s: %s", shop, se.Error)
				}
				if err := w.write(shop, rec); err != nil {
					cancel()
					return errors.Wrap(err, "write output")
				}
			}
			if streamErr != nil {
				fail(streamErr)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.CombineErrors(err, errs)
	}
	return errs
}

type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lineWriter) write(shop string, rec progress.Record) error {
	line, err := progress.Marshal(rec)
	if err != nil {
		return err
	}
	prefix, err := json.Marshal(shop)
	if err != nil {
		return err
	}
	// {"shop":"...", followed by the record's own fields
	buf := make([]byte, 0, len(line)+len(prefix)+10)
	buf = append(buf, `{"shop":`...)
	buf = append(buf, prefix...)
	buf = append(buf, ',')
	buf = append(buf, line[1:]...)
	buf = append(buf, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.w.Write(buf)
	return err
}

func dedupe(shops []string) []string {
	seen := make(map[string]bool, len(shops))
	var out []string
	for _, s := range shops {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
