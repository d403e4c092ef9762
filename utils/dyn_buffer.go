package utils

// DynBuffer is a growable buffer owned by a single worker. Cells exposes the
// live window, capacity beyond it is kept for reuse.
type DynBuffer[T any] struct {
	cells []T
}

func NewDynBuffer[T any](size int) *DynBuffer[T] {
	return &DynBuffer[T]{cells: make([]T, size)}
}

func (db *DynBuffer[T]) Cells() []T { return db.cells }

func (db *DynBuffer[T]) Len() int { return len(db.cells) }

func (db *DynBuffer[T]) Cap() int { return cap(db.cells) }

// EnsureCapacity reallocates and copies the live cells when capacity is short.
// Growth at least doubles to amortize repeated small increases.
func (db *DynBuffer[T]) EnsureCapacity(capacity int) {
	if capacity <= cap(db.cells) {
		return
	}
	newCap := 2 * cap(db.cells)
	if newCap < capacity {
		newCap = capacity
	}
	grown := make([]T, len(db.cells), newCap)
	copy(grown, db.cells)
	db.cells = grown
}

// Resize sets the live length, preserving the existing prefix. Cells exposed
// by growth within spare capacity keep whatever they held before.
func (db *DynBuffer[T]) Resize(size int) {
	db.EnsureCapacity(size)
	db.cells = db.cells[:size]
}

// Swap exchanges the storage of two buffers without copying
func (db *DynBuffer[T]) Swap(other *DynBuffer[T]) {
	db.cells, other.cells = other.cells, db.cells
}
