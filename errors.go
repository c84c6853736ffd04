package physync

import "errors"

var (
	// ErrInvalidSize is returned by Register when a used size component is not > 0.
	ErrInvalidSize = errors.New("physync: object size must be positive")
	// ErrDuplicateID is returned by Register when another registered object has the same id.
	ErrDuplicateID = errors.New("physync: duplicate object id")
	// ErrForeignObject is returned by Register when the object belongs to another world.
	ErrForeignObject = errors.New("physync: object is registered in another world")
	// ErrShortRecord is returned when a wire state record is truncated.
	ErrShortRecord = errors.New("physync: short state record")
)
