package thread

import (
	"context"
	"time"
)

// ID is the stable identity of a comment or thread target.
type ID string

// Comment is one thread item.
type Comment struct {
	ID         ID
	Parent     ID
	Author     string
	Text       string // raw HN HTML
	CreatedAt  time.Time
	ReplyCount int
	RepliedTo  string // author of the parent comment, replies only
	Deleted    bool
}

// Ordering selects how a remote source sorts a list.
type Ordering int

const (
	// Popularity is the primary, ranked ordering.
	Popularity Ordering = iota
	// Chronological is the secondary, oldest-first ordering.
	Chronological
)

func (o Ordering) String() string {
	switch o {
	case Popularity:
		return "popular"
	case Chronological:
		return "newest"
	default:
		return "unknown"
	}
}

// ParseOrdering maps a CLI/config value to an Ordering.
func ParseOrdering(s string) (Ordering, bool) {
	switch s {
	case "popular", "popularity", "top", "":
		return Popularity, true
	case "newest", "chronological", "new", "date":
		return Chronological, true
	}
	return Popularity, false
}

// FetchRequest identifies one page of one list under one ordering.
type FetchRequest struct {
	Target   ID
	Ordering Ordering
	Page     int // 1-based
	PageSize int
}

// FetchResult is one page response from a source ordering.
type FetchResult struct {
	Items      []Comment
	HasMore    bool
	TotalCount int // 0 if unknown
	PageSize   int // effective page size reported by the source
}

// Fetcher is the remote fetch service. Implementations must be safe for
// concurrent use and idempotent per (target, ordering, page).
type Fetcher interface {
	FetchPage(ctx context.Context, req FetchRequest) (FetchResult, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req FetchRequest) (FetchResult, error)

// FetchPage calls f.
func (f FetcherFunc) FetchPage(ctx context.Context, req FetchRequest) (FetchResult, error) {
	return f(ctx, req)
}

// Invalidator is optionally implemented by a Fetcher that memoizes source
// data. The thread invalidates the targets of a reload before refetching.
type Invalidator interface {
	Invalidate(target ID)
}

// Mutator is the remote mutation service. AddComment and ReplyComment return
// the identity of the created comment.
type Mutator interface {
	AddComment(ctx context.Context, target ID, text string) (ID, error)
	ReplyComment(ctx context.Context, parent ID, text string) (ID, error)
	DeleteComment(ctx context.Context, id ID) error
}

// MutationResult is handed back to the caller of a mutation.
type MutationResult struct {
	ID      ID
	Err     error
	Message string
}

// OK reports whether the mutation succeeded.
func (r MutationResult) OK() bool { return r.Err == nil }

// ListID names one paginated list: RootList, or the ID of an expanded root
// comment for its reply list.
type ListID string

// RootList is the ListID of the root comment list.
const RootList ListID = ""

// IsRoot reports whether id names the root list.
func (id ListID) IsRoot() bool { return id == RootList }

// Surface is the render surface the loader writes into. It is called only
// from the owner goroutine.
type Surface interface {
	Materialize(list ListID, index int, c Comment)
	SetPlaceholder(list ListID, index int, kind PlaceholderKind)
}

// Resizer is optionally implemented by a Surface that wants to learn about
// list length changes (skeleton growth and trims).
type Resizer interface {
	Resize(list ListID, length int)
}
