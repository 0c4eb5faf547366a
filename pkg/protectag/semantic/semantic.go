// Package semantic resolves products that the deterministic classifier found
// electronic but could not place, using an external text classifier with a
// strict JSON contract and a local keyword heuristic as the degrade path.
package semantic

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cognicore/protectag/pkg/protectag/category"
	"github.com/cognicore/protectag/pkg/protectag/classify"
	"github.com/cognicore/protectag/pkg/protectag/product"
)

// DefaultTimeout bounds a single classifier call.
const DefaultTimeout = 15 * time.Second

// Backend is a single-shot text classifier: system instructions and a user
// payload in, raw model text out.
type Backend interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Source records which path produced a result.
type Source int

const (
	SourceModel Source = iota
	SourceHeuristic
	SourceGeneral
)

func (s Source) String() string {
	switch s {
	case SourceModel:
		return "model"
	case SourceHeuristic:
		return "heuristic"
	default:
		return "general"
	}
}

// Result is the resolved category. CategoryID is nil only when neither the
// model, the heuristic nor a general category produced an id.
type Result struct {
	CategoryID *int64
	Source     Source
}

// Options configures a Fallback.
type Options struct {
	Backend    Backend              // nil skips straight to the heuristic
	Classifier *classify.Classifier // provides the heuristic keyword table
	Timeout    time.Duration        // per call; 0 = DefaultTimeout
	Logger     *zap.SugaredLogger
}

// Fallback is the semantic classification stage.
type Fallback struct {
	backend    Backend
	classifier *classify.Classifier
	timeout    time.Duration
	logger     *zap.SugaredLogger
}

// New creates a Fallback.
func New(opts Options) *Fallback {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Fallback{
		backend:    opts.Backend,
		classifier: opts.Classifier,
		timeout:    timeout,
		logger:     logger,
	}
}

// ClassifyAmbiguous asks the backend for exactly one category. It never
// fails: transport errors, timeouts, malformed answers and ids outside the
// active registry all degrade to the heuristic, then to the general category.
// A null answer resolves to the general category.
func (f *Fallback) ClassifyAmbiguous(ctx context.Context, p product.Product, reg *category.Registry, intro string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Errorw("semantic classifier panicked", "product_id", p.ID, "panic", fmt.Sprint(r))
			res = f.heuristic(p, reg)
		}
	}()

	if f.backend == nil {
		return f.heuristic(p, reg)
	}

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	raw, err := f.backend.Complete(callCtx, BuildSystemPrompt(reg, intro), BuildUserPrompt(p, reg))
	if err != nil {
		f.logger.Warnw("semantic classifier unavailable, using heuristic", "product_id", p.ID, "error", err)
		return f.heuristic(p, reg)
	}

	ans, err := ParseAnswer(raw)
	if err != nil {
		f.logger.Warnw("semantic classifier answer rejected, using heuristic", "product_id", p.ID, "error", err)
		return f.heuristic(p, reg)
	}

	if ans.CategoryID == nil {
		return Result{CategoryID: reg.GeneralID(), Source: SourceGeneral}
	}
	if !reg.Contains(*ans.CategoryID) {
		f.logger.Warnw("semantic classifier returned unknown category, using heuristic",
			"product_id", p.ID, "category_id", *ans.CategoryID)
		return f.heuristic(p, reg)
	}
	return Result{CategoryID: ans.CategoryID, Source: SourceModel}
}

func (f *Fallback) heuristic(p product.Product, reg *category.Registry) Result {
	if f.classifier != nil {
		if id := f.classifier.Heuristic(p, reg); id != nil {
			if reg.IsGeneral(*id) {
				return Result{CategoryID: id, Source: SourceGeneral}
			}
			return Result{CategoryID: id, Source: SourceHeuristic}
		}
	}
	return Result{CategoryID: reg.GeneralID(), Source: SourceGeneral}
}
