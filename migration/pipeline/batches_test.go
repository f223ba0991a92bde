package pipeline_test

import (
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/stokaro/ferry/core/record"
	"github.com/stokaro/ferry/migration/pipeline"
)

func TestBatches_ChunksAtSize(t *testing.T) {
	c := qt.New(t)

	b := pipeline.NewBatches(2)

	_, full := b.Add(record.WriteOp{Table: "a", ID: "1"})
	c.Assert(full, qt.IsFalse)
	_, full = b.Add(record.WriteOp{Table: "b", ID: "1"})
	c.Assert(full, qt.IsFalse)

	chunk, full := b.Add(record.WriteOp{Table: "a", ID: "2"})
	c.Assert(full, qt.IsTrue)
	c.Assert(chunk.Table, qt.Equals, "a")
	c.Assert(chunk.Rows, qt.HasLen, 2)

	rest := b.Drain()
	c.Assert(rest, qt.HasLen, 1)
	c.Assert(rest[0].Table, qt.Equals, "b")
	c.Assert(b.Drain(), qt.HasLen, 0)
}

func TestBatches_OneRowPerID(t *testing.T) {
	c := qt.New(t)

	b := pipeline.NewBatches(10)
	b.Add(record.WriteOp{Table: "attachments", ID: "att1", Fields: map[string]any{"size": 1}})
	b.Add(record.WriteOp{Table: "attachments", ID: "att1", Fields: map[string]any{"size": 2}})

	chunks := b.Drain()
	c.Assert(chunks, qt.HasLen, 1)
	c.Assert(chunks[0].Rows, qt.HasLen, 1)
	c.Assert(chunks[0].Rows[0].Fields["size"], qt.Equals, 2)
}

func TestBatches_ConcurrentAdd(t *testing.T) {
	c := qt.New(t)

	b := pipeline.NewBatches(7)
	var mu sync.Mutex
	total := 0

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				if chunk, full := b.Add(record.WriteOp{Table: "t", ID: string(rune('a'+w)) + string(rune('A'+i))}); full {
					mu.Lock()
					total += len(chunk.Rows)
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	for _, chunk := range b.Drain() {
		total += len(chunk.Rows)
	}
	c.Assert(total, qt.Equals, 400)
}
