package pipeline

import (
	"slices"
	"strings"
	"sync"

	"github.com/stokaro/ferry/core/record"
	"github.com/stokaro/ferry/dbschema/types"
)

// Chunk is a batch of rows for one table, ready to be bulk upserted.
type Chunk struct {
	Table string
	Rows  []types.Row
}

type batch struct {
	rows  []types.Row
	index map[string]int
}

// Batches accumulates write ops per table. It is safe for concurrent use.
//
// A batch holds at most one row per id: adding an op for an id already in the batch
// replaces the pending row.
type Batches struct {
	mu      sync.Mutex
	size    int
	batches map[string]*batch
}

// NewBatches creates an accumulator emitting chunks of the given size.
func NewBatches(size int) *Batches {
	return &Batches{size: max(size, 1), batches: make(map[string]*batch)}
}

// Add appends an op and returns the full chunk of its table, if adding it filled one.
func (b *Batches) Add(op record.WriteOp) (Chunk, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bt, ok := b.batches[op.Table]
	if !ok {
		bt = &batch{index: make(map[string]int)}
		b.batches[op.Table] = bt
	}

	row := types.Row{ID: op.ID, Fields: op.Fields}
	if i, ok := bt.index[op.ID]; ok {
		bt.rows[i] = row
		return Chunk{}, false
	}
	bt.index[op.ID] = len(bt.rows)
	bt.rows = append(bt.rows, row)

	if len(bt.rows) < b.size {
		return Chunk{}, false
	}
	delete(b.batches, op.Table)
	return Chunk{Table: op.Table, Rows: bt.rows}, true
}

// Drain removes and returns every pending chunk, ordered by table name.
func (b *Batches) Drain() []Chunk {
	b.mu.Lock()
	defer b.mu.Unlock()

	chunks := make([]Chunk, 0, len(b.batches))
	for table, bt := range b.batches {
		chunks = append(chunks, Chunk{Table: table, Rows: bt.rows})
	}
	b.batches = make(map[string]*batch)

	slices.SortFunc(chunks, func(a, b Chunk) int { return strings.Compare(a.Table, b.Table) })
	return chunks
}
