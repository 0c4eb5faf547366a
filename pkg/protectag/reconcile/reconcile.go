package reconcile

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
)

// TagReader returns the current tags of a product.
type TagReader interface {
	Tags(ctx context.Context, productID string) ([]string, error)
}

// TagWriter mutates product tags. Both calls are idempotent upstream.
type TagWriter interface {
	RemoveTags(ctx context.Context, productID string, tags []string) error
	AddTags(ctx context.Context, productID string, tags []string) error
}

// Tagger reads and writes tags.
type Tagger interface {
	TagReader
	TagWriter
}

// Desired is the marker state a product should end up in.
type Desired struct {
	CategoryID *int64
	Enabled    bool
}

// Changes lists the tags to remove and then add, both deduplicated and in
// first-seen order.
type Changes struct {
	Remove []string
	Add    []string
}

// Empty reports whether no mutation is needed.
func (c Changes) Empty() bool { return len(c.Remove) == 0 && len(c.Add) == 0 }

// Minimal drops the tags that are both removed and re-added. Applying the
// minimal changes reaches the same final tag set with fewer writes, and a
// product already in the desired state yields no changes at all.
func (c Changes) Minimal() Changes {
	add := make(map[string]struct{}, len(c.Add))
	for _, t := range c.Add {
		add[t] = struct{}{}
	}
	rem := make(map[string]struct{}, len(c.Remove))
	for _, t := range c.Remove {
		rem[t] = struct{}{}
	}
	var out Changes
	for _, t := range c.Remove {
		if _, ok := add[t]; !ok {
			out.Remove = append(out.Remove, t)
		}
	}
	for _, t := range c.Add {
		if _, ok := rem[t]; !ok {
			out.Add = append(out.Add, t)
		}
	}
	return out
}

// Plan computes the full remove set (every marker currently present) and the
// add set (the desired category marker, if any, and the on/off marker).
// Foreign tags never appear in either set.
func (m Markers) Plan(current []string, desired Desired) Changes {
	var c Changes
	c.Remove = m.ClearPlan(current)
	if desired.CategoryID != nil {
		c.Add = append(c.Add, m.Cat(*desired.CategoryID))
	}
	if desired.Enabled {
		c.Add = append(c.Add, m.On())
	} else {
		c.Add = append(c.Add, m.Off())
	}
	return c
}

// ClearPlan returns the marker tags present in current, deduplicated.
func (m Markers) ClearPlan(current []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range current {
		if !m.IsMarker(t) {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// PartialError reports a product whose markers were removed but whose new
// markers could not be added. The product carries no markers until the next
// run recomputes and re-applies them.
type PartialError struct {
	ProductID string
	Removed   []string
	Err       error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("reconcile %s: removed %v but add failed: %v", e.ProductID, e.Removed, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// Reconciler applies marker changes through a Tagger.
type Reconciler struct {
	Markers Markers
	Tagger  Tagger
}

// Reconcile reads the product's tags and applies the minimal changes that
// reach desired. It returns the changes actually applied.
func (r *Reconciler) Reconcile(ctx context.Context, productID string, desired Desired) (Changes, error) {
	current, err := r.Tagger.Tags(ctx, productID)
	if err != nil {
		return Changes{}, errors.Wrapf(err, "read tags for %s", productID)
	}
	return r.Apply(ctx, productID, current, desired)
}

// Apply removes, then adds. Each call is skipped when its set is empty. A
// remove failure applies nothing; an add failure after a successful remove
// returns a *PartialError.
func (r *Reconciler) Apply(ctx context.Context, productID string, current []string, desired Desired) (Changes, error) {
	changes := r.Markers.Plan(current, desired).Minimal()

	if len(changes.Remove) > 0 {
		if err := r.Tagger.RemoveTags(ctx, productID, changes.Remove); err != nil {
			return Changes{}, errors.Wrapf(err, "remove tags from %s", productID)
		}
	}
	if len(changes.Add) > 0 {
		if err := r.Tagger.AddTags(ctx, productID, changes.Add); err != nil {
			if len(changes.Remove) > 0 {
				return Changes{Remove: changes.Remove}, &PartialError{ProductID: productID, Removed: changes.Remove, Err: err}
			}
			return Changes{}, errors.Wrapf(err, "add tags to %s", productID)
		}
	}
	return changes, nil
}

// Clear removes every marker tag from the product and returns what was
// removed.
func (r *Reconciler) Clear(ctx context.Context, productID string) ([]string, error) {
	current, err := r.Tagger.Tags(ctx, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "read tags for %s", productID)
	}
	remove := r.Markers.ClearPlan(current)
	if len(remove) == 0 {
		return nil, nil
	}
	if err := r.Tagger.RemoveTags(ctx, productID, remove); err != nil {
		return nil, errors.Wrapf(err, "remove tags from %s", productID)
	}
	return remove, nil
}
