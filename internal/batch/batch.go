// Package batch partitions a file corpus into Batches and bisects a
// failed Batch into two retriable halves.
package batch

import (
	"errors"
)

// Batch is an ordered set of input file paths assigned to one worker
// invocation.
type Batch struct {
	ID       int
	Files    []string
	ParentID int // 0 if not produced by bisection
	Depth    int // retry-via-bisection depth; 0 for an original batch
}

// ErrBatchNotBisectable is returned by Bisect when a batch has at most
// one file and therefore cannot be split further.
var ErrBatchNotBisectable = errors.New("batch: cannot bisect a batch of size <= 1")

// IDCounter issues monotonically increasing, never-reused batch IDs for
// one scheduler run.
type IDCounter struct {
	next int
}

// NewIDCounter returns a counter whose first issued ID is 1.
func NewIDCounter() *IDCounter {
	return &IDCounter{next: 1}
}

// Next returns the next unused ID.
func (c *IDCounter) Next() int {
	id := c.next
	c.next++

	return id
}

// IDSource issues fresh, never-reused IDs. *IDCounter satisfies this,
// as does any other monotonic counter a caller already owns (the
// scheduler shares one counter across initial partition and bisection).
type IDSource interface {
	Next() int
}

// InitialPartition splits files into fixed-size batches in discovery
// order, preserving FIFO-friendly ordering for deterministic scheduling.
// batchSize <= 0 is treated as 1 (one file per batch).
func InitialPartition(files []string, batchSize int, ids IDSource) []Batch {
	if batchSize <= 0 {
		batchSize = 1
	}

	batches := make([]Batch, 0, (len(files)+batchSize-1)/batchSize)

	for start := 0; start < len(files); start += batchSize {
		end := min(start+batchSize, len(files))

		chunk := make([]string, end-start)
		copy(chunk, files[start:end])

		batches = append(batches, Batch{
			ID:    ids.Next(),
			Files: chunk,
		})
	}

	return batches
}

// Bisect splits b.Files into two halves (front/back, with the larger
// half first for odd counts), each inheriting ParentID = b.ID and
// Depth = b.Depth + 1, and fresh IDs from ids. Neither half is ever
// empty.
func Bisect(b Batch, ids IDSource) (front, back Batch, err error) {
	if len(b.Files) <= 1 {
		return Batch{}, Batch{}, ErrBatchNotBisectable
	}

	mid := (len(b.Files) + 1) / 2

	frontFiles := make([]string, mid)
	copy(frontFiles, b.Files[:mid])

	backFiles := make([]string, len(b.Files)-mid)
	copy(backFiles, b.Files[mid:])

	front = Batch{ID: ids.Next(), Files: frontFiles, ParentID: b.ID, Depth: b.Depth + 1}
	back = Batch{ID: ids.Next(), Files: backFiles, ParentID: b.ID, Depth: b.Depth + 1}

	return front, back, nil
}

// ComputeBatchSize derives the initial batch size from a corpus size and
// a target divisor: s = max(1, ceil(totalFiles/divisor)). A divisor <= 0
// is treated as 1, degenerating to a single batch holding every file.
func ComputeBatchSize(totalFiles, divisor int) int {
	if divisor <= 0 {
		divisor = 1
	}

	size := (totalFiles + divisor - 1) / divisor
	if size < 1 {
		size = 1
	}

	return size
}

// TotalFiles sums the file count across a slice of batches. Useful for
// checking the conservation invariant against the original corpus size.
func TotalFiles(batches []Batch) int {
	total := 0
	for _, b := range batches {
		total += len(b.Files)
	}

	return total
}
