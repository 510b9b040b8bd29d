// Package bridge moves blocking database work off the UI event loop.
//
// A single Worker goroutine owns the database handle. UI code submits typed
// Requests; for each one the worker enqueues exactly one Response and then
// calls the Notifier with the string form of the matching Tag. The Notifier
// is expected to wake the UI event loop (the TUI uses an Inbox), which
// hands the tag to Handler.OnNotification. The handler performs exactly one
// receive from the response queue and dispatches the payload to one view.
//
// Pairing relies on FIFO order only: responses carry no request id. Every
// tag must be handed to the handler, in order, or the queues desynchronize.
package bridge

import (
	"context"
	"errors"

	"github.com/johan-st/vpin-tui/internal/database"
)

var (
	// ErrUnknownTag is returned when a notification string is not a known tag.
	ErrUnknownTag = errors.New("unknown notification tag")
	// ErrDesync is returned when the response at the head of the queue does
	// not belong to the notified family.
	ErrDesync = errors.New("response queue out of sync")
	// ErrWorkerExited is returned by Submit once the worker has stopped.
	ErrWorkerExited = errors.New("worker has exited")
)

// Store is the database handle owned by the worker.
type Store interface {
	Packages(ctx context.Context) ([]string, error)
	PackageDists(ctx context.Context, pkg string) ([]string, error)
	Shows(ctx context.Context) ([]string, error)
	Roles(ctx context.Context) ([]string, error)
	Platforms(ctx context.Context) ([]string, error)
	Sites(ctx context.Context) ([]string, error)
	Levels(ctx context.Context, show string) (database.LevelMap, error)
	VersionPins(ctx context.Context, q database.PinQuery) ([]database.VersionPin, error)
	PackageWiths(ctx context.Context, pinID int64) ([]string, error)
	Revisions(ctx context.Context, q database.RevisionQuery) ([]database.Revision, error)
	Changes(ctx context.Context, revisionID int64) ([]database.Change, error)
	ApplyChanges(ctx context.Context, changes []database.PinChange, author, comment string) (int64, error)
	Close() error
}

// Connector establishes the worker's database handle. It runs on the worker
// goroutine.
type Connector func(ctx context.Context) (Store, error)

// SQLiteConnector opens the pin database at path.
func SQLiteConnector(path string, opts database.OpenOptions) Connector {
	return func(ctx context.Context) (Store, error) {
		return database.OpenStore(ctx, path, opts)
	}
}

// Notifier wakes the UI with the string form of a Tag. It is called from the
// worker goroutine and must be safe for that.
type Notifier func(tag string)

// Submitter accepts requests for the worker.
type Submitter interface {
	Submit(req Request) error
}

// Authorizer decides whether the author of a save may write pins at a level.
type Authorizer interface {
	CanWriteLevel(level string) bool
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(level string) bool

// CanWriteLevel calls f(level).
func (f AuthorizerFunc) CanWriteLevel(level string) bool {
	return f(level)
}
