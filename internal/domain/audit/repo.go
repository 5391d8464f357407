package audit

import (
	"context"
)

// Repository is the append-only audit store. Append assigns the next
// gapless sequence number and returns it; entries are never updated or
// deleted.
type Repository interface {
	Append(ctx context.Context, e *Entry) (int64, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error)
}
