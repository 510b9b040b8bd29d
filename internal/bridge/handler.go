package bridge

import (
	"fmt"

	"github.com/johan-st/vpin-tui/internal/database"
)

// PackagesView displays the package tree.
type PackagesView interface {
	SetPackages(names []string)
	SetPackageDists(pkg string, versions []string)
}

// ToolbarView displays the filter selectors of the main toolbar.
type ToolbarView interface {
	SetShows(names []string)
	SetRoles(names []string)
	SetPlatforms(names []string)
	SetSites(names []string)
}

// VpinDialogView displays the choices of the pin editing dialog.
type VpinDialogView interface {
	SetLevels(show string, levels database.LevelMap)
	SetRoles(names []string)
	SetPlatforms(names []string)
	SetSites(names []string)
}

// WithsView displays the withs of one pin.
type WithsView interface {
	SetWiths(pinID int64, row int, withs []string)
}

// MainWindowView displays pins and the audit trail.
type MainWindowView interface {
	SetVpins(query database.PinQuery, pins []database.VersionPin)
	SetRevisions(revs []database.Revision)
	SetChanges(revisionID int64, changes []database.Change)
	VpinChangesSaved(ok bool, revisionID int64)
}

// Alerter shows an error message to the user.
type Alerter interface {
	Alert(message string)
}

// Views are the collaborators the handler dispatches to. A nil view drops
// the responses addressed to it after they have been received.
type Views struct {
	Packages   PackagesView
	Toolbar    ToolbarView
	Dialog     VpinDialogView
	Withs      WithsView
	MainWindow MainWindowView
	Alerts     Alerter
}

// ResponseSource is the consuming side of a worker's response queue.
type ResponseSource interface {
	Responses() <-chan Response
	Done() <-chan struct{}
}

// Handler runs on the UI event loop and turns notifications into view
// updates.
type Handler struct {
	source ResponseSource
	views  Views
}

// NewHandler creates a handler receiving from source.
func NewHandler(source ResponseSource, views Views) *Handler {
	return &Handler{source: source, views: views}
}

// OnNotification consumes the response announced by tag and dispatches it.
// An error means the pairing between notifications and responses is broken;
// callers should treat it as fatal.
func (h *Handler) OnNotification(tag string) error {
	t, err := ParseTag(tag)
	if err != nil {
		return err
	}
	if t == TagReset {
		return nil
	}

	resp, err := h.receive(t)
	if err != nil {
		return err
	}
	if resp.Tag() != t {
		return fmt.Errorf("%w: notified %s but received %T", ErrDesync, t, resp)
	}
	h.dispatch(resp)
	return nil
}

// receive takes the head of the response queue. The worker enqueues before
// it notifies, so a response is normally ready; the blocking fallback only
// guards against a source that notifies early.
func (h *Handler) receive(t Tag) (Response, error) {
	select {
	case resp := <-h.source.Responses():
		return resp, nil
	default:
	}

	select {
	case resp := <-h.source.Responses():
		return resp, nil
	case <-h.source.Done():
		select {
		case resp := <-h.source.Responses():
			return resp, nil
		default:
		}
		return nil, fmt.Errorf("%w: no response queued for %s and the worker has exited", ErrDesync, t)
	}
}

func (h *Handler) dispatch(resp Response) {
	v := h.views
	switch r := resp.(type) {
	case ErrorResponse:
		if v.Alerts != nil {
			v.Alerts.Alert(r.Message)
		}

	case Packages:
		if v.Packages != nil {
			v.Packages.SetPackages(r.Names)
		}
	case PackageDists:
		if v.Packages != nil {
			v.Packages.SetPackageDists(r.Package, r.Versions)
		}

	case ToolbarShows:
		if v.Toolbar != nil {
			v.Toolbar.SetShows(r.Names)
		}
	case ToolbarRoles:
		if v.Toolbar != nil {
			v.Toolbar.SetRoles(r.Names)
		}
	case ToolbarPlatforms:
		if v.Toolbar != nil {
			v.Toolbar.SetPlatforms(r.Names)
		}
	case ToolbarSites:
		if v.Toolbar != nil {
			v.Toolbar.SetSites(r.Names)
		}

	case DialogLevels:
		if v.Dialog != nil {
			v.Dialog.SetLevels(r.Show, r.Levels)
		}
	case DialogRoles:
		if v.Dialog != nil {
			v.Dialog.SetRoles(r.Names)
		}
	case DialogPlatforms:
		if v.Dialog != nil {
			v.Dialog.SetPlatforms(r.Names)
		}
	case DialogSites:
		if v.Dialog != nil {
			v.Dialog.SetSites(r.Names)
		}

	case PackageWiths:
		if v.Withs != nil {
			v.Withs.SetWiths(r.PinID, r.Row, r.Withs)
		}

	case Vpins:
		if v.MainWindow != nil {
			v.MainWindow.SetVpins(r.Query, r.Pins)
		}
	case Revisions:
		if v.MainWindow != nil {
			v.MainWindow.SetRevisions(r.Revisions)
		}
	case Changes:
		if v.MainWindow != nil {
			v.MainWindow.SetChanges(r.RevisionID, r.Changes)
		}
	case VpinChangesSaved:
		if v.MainWindow != nil {
			v.MainWindow.VpinChangesSaved(r.Ok, r.RevisionID)
		}
	}
}
