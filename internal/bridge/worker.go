package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/johan-st/vpin-tui/internal/database"
)

// DefaultQueueSize is the capacity of the response queue.
const DefaultQueueSize = 64

// Option configures a Worker.
type Option func(*Worker)

// WithAuthorizer checks every change of a SaveVpinChanges request before it
// reaches the store.
func WithAuthorizer(a Authorizer) Option {
	return func(w *Worker) {
		w.authorizer = a
	}
}

// WithQueueSize sets the capacity of the response queue. When it is full
// the worker waits for the handler; requests are never dropped.
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.queueSize = n
		}
	}
}

// WithLogger sets the logger used for failures on the worker goroutine.
func WithLogger(l *log.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// Worker serializes all database access on one goroutine.
type Worker struct {
	connect    Connector
	notify     Notifier
	authorizer Authorizer
	logger     *log.Logger
	queueSize  int

	mu      sync.Mutex
	pending []Request
	exited  bool
	wake    chan struct{}

	responses chan Response
	done      chan struct{}

	startOnce sync.Once
	started   atomic.Bool
}

// NewWorker creates a worker that will connect with connect and announce
// each response through notify. Call Start to launch it.
func NewWorker(connect Connector, notify Notifier, opts ...Option) *Worker {
	w := &Worker{
		connect:   connect,
		notify:    notify,
		logger:    log.Default(),
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.wake = make(chan struct{}, 1)
	w.responses = make(chan Response, w.queueSize)
	w.done = make(chan struct{})
	return w
}

// Start launches the worker goroutine. Later calls do nothing. The worker
// stops on Terminate, on a failed connection, or when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.started.Store(true)
		go w.run(ctx)
	})
}

// Submit enqueues req without blocking. The request queue is unbounded, so
// Submit fails only once the worker has exited. Requests submitted before
// Start are processed once the worker is connected.
func (w *Worker) Submit(req Request) error {
	w.mu.Lock()
	if w.exited {
		w.mu.Unlock()
		return ErrWorkerExited
	}
	w.pending = append(w.pending, req)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

// next pops the oldest pending request.
func (w *Worker) next() (Request, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) == 0 {
		return nil, false
	}
	req := w.pending[0]
	w.pending[0] = nil
	w.pending = w.pending[1:]
	return req, true
}

// exit refuses further requests. Anything still pending is dropped.
func (w *Worker) exit() {
	w.mu.Lock()
	w.exited = true
	w.pending = nil
	w.mu.Unlock()
}

// Responses is the queue the Handler receives from.
func (w *Worker) Responses() <-chan Response {
	return w.responses
}

// Done is closed once the worker goroutine has exited and released the
// store.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Wait blocks until the worker has exited. It returns immediately if the
// worker was never started.
func (w *Worker) Wait() {
	if !w.started.Load() {
		return
	}
	<-w.done
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	defer w.exit()

	store, err := w.connect(ctx)
	if err != nil {
		w.logger.Printf("bridge: connection failed: %v", err)
		w.reply(ctx, ErrorResponse{Message: fmt.Sprintf("connection failed: %v", err)})
		return
	}
	defer func() {
		if err := store.Close(); err != nil {
			w.logger.Printf("bridge: failed to close store: %v", err)
		}
	}()

	for {
		req, ok := w.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-w.wake:
			}
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if _, ok := req.(Terminate); ok {
			return
		}
		if !w.reply(ctx, w.handle(ctx, store, req)) {
			return
		}
	}
}

// reply enqueues resp and only then announces its tag.
func (w *Worker) reply(ctx context.Context, resp Response) bool {
	select {
	case w.responses <- resp:
	case <-ctx.Done():
		return false
	}
	if w.notify != nil {
		w.notify(resp.Tag().String())
	}
	return true
}

func (w *Worker) handle(ctx context.Context, store Store, req Request) Response {
	switch r := req.(type) {
	case TreeGetPackages:
		names, err := store.Packages(ctx)
		if err != nil {
			return w.failure(req, err)
		}
		return Packages{Names: names}

	case TreeGetPackageDists:
		versions, err := store.PackageDists(ctx, r.Package)
		if err != nil {
			return w.failure(req, err)
		}
		return PackageDists{Package: r.Package, Versions: versions}

	case ToolbarGetShows:
		names, err := store.Shows(ctx)
		if err != nil {
			return w.failure(req, err)
		}
		return ToolbarShows{Names: names}

	case ToolbarGetRoles:
		names, err := store.Roles(ctx)
		if err != nil {
			return w.failure(req, err)
		}
		return ToolbarRoles{Names: names}

	case ToolbarGetPlatforms:
		names, err := store.Platforms(ctx)
		if err != nil {
			return w.failure(req, err)
		}
		return ToolbarPlatforms{Names: names}

	case ToolbarGetSites:
		names, err := store.Sites(ctx)
		if err != nil {
			return w.failure(req, err)
		}
		return ToolbarSites{Names: names}

	case DialogGetLevels:
		levels, err := store.Levels(ctx, r.Show)
		if err != nil {
			return w.failure(req, err)
		}
		return DialogLevels{Show: r.Show, Levels: levels}

	case DialogGetRoles:
		names, err := store.Roles(ctx)
		if err != nil {
			return w.failure(req, err)
		}
		return DialogRoles{Names: names}

	case DialogGetPlatforms:
		names, err := store.Platforms(ctx)
		if err != nil {
			return w.failure(req, err)
		}
		return DialogPlatforms{Names: names}

	case DialogGetSites:
		names, err := store.Sites(ctx)
		if err != nil {
			return w.failure(req, err)
		}
		return DialogSites{Names: names}

	case GetPackageWiths:
		withs, err := store.PackageWiths(ctx, r.PinID)
		if err != nil {
			return w.failure(req, err)
		}
		return PackageWiths{PinID: r.PinID, Row: r.Row, Withs: withs}

	case GetVpins:
		pins, err := store.VersionPins(ctx, r.Query)
		if err != nil {
			return w.failure(req, err)
		}
		return Vpins{Query: r.Query, Pins: pins}

	case GetRevisions:
		revs, err := store.Revisions(ctx, r.Query)
		if err != nil {
			return w.failure(req, err)
		}
		return Revisions{Revisions: revs}

	case GetChanges:
		changes, err := store.Changes(ctx, r.RevisionID)
		if err != nil {
			return w.failure(req, err)
		}
		return Changes{RevisionID: r.RevisionID, Changes: changes}

	case SaveVpinChanges:
		if err := w.authorize(r.Changes); err != nil {
			return w.failure(req, err)
		}
		id, err := store.ApplyChanges(ctx, r.Changes, r.User, r.Comment)
		if errors.Is(err, database.ErrEmptyChange) {
			return VpinChangesSaved{Ok: false}
		}
		if err != nil {
			return w.failure(req, err)
		}
		return VpinChangesSaved{Ok: true, RevisionID: id}
	}

	return w.failure(req, fmt.Errorf("unsupported request %T", req))
}

func (w *Worker) authorize(changes []database.PinChange) error {
	if w.authorizer == nil {
		return nil
	}
	for _, c := range changes {
		if c.Level == "" {
			return fmt.Errorf("access denied: pin %d has no level", c.PinID)
		}
		if !w.authorizer.CanWriteLevel(c.Level) {
			return fmt.Errorf("access denied: cannot write pins at %s", c.Level)
		}
	}
	return nil
}

func (w *Worker) failure(req Request, err error) ErrorResponse {
	w.logger.Printf("bridge: %s %T failed: %v", req.Family(), req, err)
	return ErrorResponse{Message: err.Error()}
}
