// Package progress defines the records streamed by a batch run and their
// newline-delimited JSON encoding.
package progress

import (
	"crypto/rand"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Kind is the wire discriminator of a record.
type Kind string

const (
	KindStarted   Kind = "started"
	KindItem      Kind = "item"
	KindItemError Kind = "item_error"
	KindCleared   Kind = "cleared"
	KindError     Kind = "error"
	KindDone      Kind = "done"
)

// Record is one element of a progress stream.
type Record interface {
	Kind() Kind
}

// Started is emitted once, after candidate collection.
type Started struct {
	RunID string `json:"runId"`
	Total int    `json:"total"`
}

// Item reports one evaluated product. Enabled is the eligibility decision
// written as the on/off marker.
type Item struct {
	Index      int    `json:"index"`
	Total      int    `json:"total"`
	ProductID  string `json:"productId"`
	CategoryID *int64 `json:"categoryId"`
	Enabled    bool   `json:"enabled"`
	Title      string `json:"title"`
	Stage      string `json:"stage,omitempty"`
}

// ItemError reports one product that failed. The batch continues.
type ItemError struct {
	Index     int    `json:"index"`
	Total     int    `json:"total"`
	ProductID string `json:"productId"`
	Error     string `json:"error"`
}

// Cleared reports the markers removed from one product by a clear run.
type Cleared struct {
	Index     int      `json:"index"`
	Total     int      `json:"total"`
	ProductID string   `json:"productId"`
	Removed   []string `json:"removed"`
}

// StreamError ends a stream early, before any Started record.
type StreamError struct {
	Error  string `json:"error"`
	Status int    `json:"status,omitempty"`
}

// Done is the final record. Count equals the Started total.
type Done struct {
	RunID string `json:"runId"`
	Count int    `json:"count"`
}

func (Started) Kind() Kind     { return KindStarted }
func (Item) Kind() Kind        { return KindItem }
func (ItemError) Kind() Kind   { return KindItemError }
func (Cleared) Kind() Kind     { return KindCleared }
func (StreamError) Kind() Kind { return KindError }
func (Done) Kind() Kind        { return KindDone }

// RunIDs hands out sortable run identifiers.
type RunIDs struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewRunIDs creates a generator.
func NewRunIDs() *RunIDs {
	return &RunIDs{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Next returns a new id.
func (g *RunIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Now(), g.entropy).String()
}
