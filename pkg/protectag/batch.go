package protectag

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/cognicore/protectag/pkg/protectag/catalog"
	"github.com/cognicore/protectag/pkg/protectag/product"
	"github.com/cognicore/protectag/pkg/protectag/progress"
	"github.com/cognicore/protectag/pkg/protectag/reconcile"
)

// EvaluateRequest starts an evaluate run.
type EvaluateRequest struct {
	Shop        string
	CleanSweep  bool   // re-evaluate products that already carry an on/off marker
	PromptIntro string // overrides the shop's stored prompt intro when set
}

// ClearRequest starts a clear-markers run.
type ClearRequest struct {
	Shop string
}

// Evaluate validates the request, then streams one record per candidate.
// Input errors are returned before any record is produced. The channel is
// unbuffered and closes when the run ends; cancelling ctx stops the run at
// the next send or outbound call.
func (e *Engine) Evaluate(ctx context.Context, req EvaluateRequest) (<-chan progress.Record, error) {
	s, err := e.open(ctx, req.Shop)
	if err != nil {
		return nil, err
	}
	intro := s.intro
	if req.PromptIntro != "" {
		intro = req.PromptIntro
	}

	ex := catalog.Exclusions{Vendor: e.vendor}
	if !req.CleanSweep {
		ex.Tags = []string{e.markers.On(), e.markers.Off()}
	}
	pager := &catalog.Paginator{
		Source:     s.catalog,
		PageSize:   e.pageSize,
		HardCap:    e.hardCap,
		Exclusions: ex,
		Filter:     e.filter,
	}
	rec := &reconcile.Reconciler{Markers: e.markers, Tagger: s.catalog}

	item := func(ctx context.Context, index, total int, p product.Product) progress.Record {
		out := e.decide(ctx, p, s.registry, intro)
		if _, err := rec.Reconcile(ctx, p.ID, reconcile.Desired{CategoryID: out.CategoryID, Enabled: out.Enabled}); err != nil {
			return progress.ItemError{Index: index, Total: total, ProductID: p.ID, Error: err.Error()}
		}
		return progress.Item{
			Index:      index,
			Total:      total,
			ProductID:  p.ID,
			CategoryID: out.CategoryID,
			Enabled:    out.Enabled,
			Title:      p.Title,
			Stage:      out.Stage,
		}
	}

	logger := e.logger.With("shop", s.shop.Domain, "op", "evaluate", "clean_sweep", req.CleanSweep)
	return e.start(ctx, logger, pager, item), nil
}

// ClearMarkers streams one Cleared record per product after removing every
// marker tag from it. Only the protection line is excluded and the scan is
// not capped.
func (e *Engine) ClearMarkers(ctx context.Context, req ClearRequest) (<-chan progress.Record, error) {
	s, err := e.open(ctx, req.Shop)
	if err != nil {
		return nil, err
	}
	pager := &catalog.Paginator{
		Source:     s.catalog,
		PageSize:   e.clearSize,
		Exclusions: catalog.Exclusions{Vendor: e.vendor},
	}
	rec := &reconcile.Reconciler{Markers: e.markers, Tagger: s.catalog}

	item := func(ctx context.Context, index, total int, p product.Product) progress.Record {
		removed, err := rec.Clear(ctx, p.ID)
		if err != nil {
			return progress.ItemError{Index: index, Total: total, ProductID: p.ID, Error: err.Error()}
		}
		if removed == nil {
			removed = []string{}
		}
		return progress.Cleared{Index: index, Total: total, ProductID: p.ID, Removed: removed}
	}

	logger := e.logger.With("shop", s.shop.Domain, "op", "clear")
	return e.start(ctx, logger, pager, item), nil
}

type itemFunc func(ctx context.Context, index, total int, p product.Product) progress.Record

type runState int

const (
	stateCollecting runState = iota
	stateStarted
	stateProcessing
	stateDone
	stateTerminal
)

// run is one batch: collect every candidate, announce the total, process
// candidates strictly in order, then report the count.
type run struct {
	id     string
	out    chan<- progress.Record
	pager  *catalog.Paginator
	item   itemFunc
	logger *zap.SugaredLogger

	state     runState
	items     []product.Product
	processed int
	failed    int
}

func (e *Engine) start(ctx context.Context, logger *zap.SugaredLogger, pager *catalog.Paginator, item itemFunc) <-chan progress.Record {
	out := make(chan progress.Record)
	r := &run{
		id:    e.runIDs.Next(),
		out:   out,
		pager: pager,
		item:  item,
		state: stateCollecting,
	}
	r.logger = logger.With("run_id", r.id)
	go func() {
		defer close(out)
		r.loop(ctx)
	}()
	return out
}

func (r *run) loop(ctx context.Context) {
	for r.state != stateTerminal {
		switch r.state {
		case stateCollecting:
			items, err := r.pager.Collect(ctx)
			if err != nil {
				if ctx.Err() != nil {
					r.state = stateTerminal
					continue
				}
				r.logger.Errorw("catalog paging failed", "error", err)
				r.emit(ctx, progress.StreamError{Error: err.Error(), Status: http.StatusBadGateway})
				r.state = stateTerminal
				continue
			}
			r.items = items
			r.state = stateStarted

		case stateStarted:
			r.logger.Infow("batch started", "total", len(r.items))
			if !r.emit(ctx, progress.Started{RunID: r.id, Total: len(r.items)}) {
				r.state = stateTerminal
				continue
			}
			r.state = stateProcessing

		case stateProcessing:
			if r.processed == len(r.items) {
				r.state = stateDone
				continue
			}
			p := r.items[r.processed]
			r.processed++
			rec := r.process(ctx, r.processed, p)
			if !r.emit(ctx, rec) {
				r.state = stateTerminal
			}

		case stateDone:
			r.logger.Infow("batch done", "count", r.processed, "failed", r.failed)
			r.emit(ctx, progress.Done{RunID: r.id, Count: r.processed})
			r.state = stateTerminal
		}
	}
}

// process runs one item and converts any error or panic into an ItemError.
func (r *run) process(ctx context.Context, index int, p product.Product) (rec progress.Record) {
	total := len(r.items)
	defer func() {
		if v := recover(); v != nil {
			err := errors.Newf("panic: %s", fmt.Sprint(v))
			rec = progress.ItemError{Index: index, Total: total, ProductID: p.ID, Error: err.Error()}
		}
		if ie, ok := rec.(progress.ItemError); ok {
			r.failed++
			r.logger.Warnw("item failed", "index", index, "total", total, "product_id", p.ID, "error", ie.Error)
		}
	}()
	return r.item(ctx, index, total, p)
}

// emit blocks until the consumer takes rec or ctx is cancelled.
func (r *run) emit(ctx context.Context, rec progress.Record) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case r.out <- rec:
		return true
	case <-ctx.Done():
		return false
	}
}

// Drain collects every record of a finished stream.
func Drain(ch <-chan progress.Record) []progress.Record {
	var out []progress.Record
	for rec := range ch {
		out = append(out, rec)
	}
	return out
}
