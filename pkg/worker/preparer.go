package worker

import (
	"iter"
	"strconv"

	"github.com/oklog/ulid/v2"

	"github.com/bft-labs/streamworker/pkg/task"
)

// Preparer groups input records into units of work of at most bufferSize
// tasks. It keeps no state between calls to Prepare.
type Preparer[In any, T task.Task] struct {
	bufferSize int
	prefix     string
	key        func(In) string
	newTask    func(id, unitOfWorkID string, item In) T
}

// NewPreparer creates a Preparer. prefix names the domain in unit ids
// ("limits"), key derives the per-task sub-key from an item and newTask
// wraps an item into a task.
func NewPreparer[In any, T task.Task](
	bufferSize int,
	prefix string,
	key func(In) string,
	newTask func(id, unitOfWorkID string, item In) T,
) (*Preparer[In, T], error) {
	if bufferSize <= 0 {
		return nil, ErrInvalidBufferSize
	}
	return &Preparer[In, T]{
		bufferSize: bufferSize,
		prefix:     prefix,
		key:        key,
		newTask:    newTask,
	}, nil
}

// BufferSize returns the maximum number of tasks per unit.
func (p *Preparer[In, T]) BufferSize() int {
	return p.bufferSize
}

// Prepare lazily turns items into units of work. Items are pulled only as
// units are consumed and arrival order is kept within each unit. The last
// unit may hold fewer than bufferSize tasks; no empty unit is produced.
func (p *Preparer[In, T]) Prepare(items iter.Seq[In]) iter.Seq[*UnitOfWork[T]] {
	return func(yield func(*UnitOfWork[T]) bool) {
		buf := make([]In, 0, p.bufferSize)
		for item := range items {
			buf = append(buf, item)
			if len(buf) < p.bufferSize {
				continue
			}
			if !yield(p.label(buf)) {
				return
			}
			buf = buf[:0]
		}
		if len(buf) > 0 {
			yield(p.label(buf))
		}
	}
}

// label builds one unit from a full or final group.
func (p *Preparer[In, T]) label(items []In) *UnitOfWork[T] {
	id := ulid.Make().String()
	if p.prefix != "" {
		id = p.prefix + "-" + id
	}

	// seen holds every final key; next is the next suffix to try per base.
	seen := make(map[string]bool, len(items))
	next := make(map[string]int)
	tasks := make([]T, 0, len(items))
	for i, item := range items {
		key := ""
		if p.key != nil {
			key = p.key(item)
		}
		if key == "" {
			key = strconv.Itoa(i + 1)
		}
		if seen[key] {
			base := key
			n := max(next[base], 2)
			for key = base + "-" + strconv.Itoa(n); seen[key]; key = base + "-" + strconv.Itoa(n) {
				n++
			}
			next[base] = n + 1
		}
		seen[key] = true
		tasks = append(tasks, p.newTask(id+"-"+key, id, item))
	}
	return From(id, tasks...)
}
