package tui

import (
	"fmt"

	"github.com/johan-st/vpin-tui/internal/bridge"
	"github.com/johan-st/vpin-tui/internal/database"
)

// The view types adapt App to the bridge collaborator interfaces. Their
// methods run inside Update, on the event loop.

type packagesView struct{ *App }

func (v packagesView) SetPackages(names []string) {
	v.packages.setNames(names)
	if v.packageFilter != "" && !contains(names, v.packageFilter) {
		v.packageFilter = ""
		v.requestPins()
	}
}

func (v packagesView) SetPackageDists(pkg string, versions []string) {
	v.packages.setVersions(pkg, versions)
	if v.dialog.open && v.dialog.pin.Package == pkg {
		v.dialog.setVersions(versions)
	}
}

type toolbarView struct{ *App }

func (v toolbarView) SetShows(names []string) {
	v.show.set(names)
	if v.initialShow != "" {
		if v.show.choose(v.initialShow) {
			v.requestPins()
		}
		v.initialShow = ""
	}
}

func (v toolbarView) SetRoles(names []string)     { v.role.set(names) }
func (v toolbarView) SetPlatforms(names []string) { v.platform.set(names) }
func (v toolbarView) SetSites(names []string)     { v.site.set(names) }

type dialogView struct{ *App }

func (v dialogView) SetLevels(show string, levels database.LevelMap) {
	if v.dialog.open && v.dialog.show == show {
		v.dialog.levels = levels
	}
}

func (v dialogView) SetRoles(names []string) {
	if v.dialog.open {
		v.dialog.roles = names
	}
}

func (v dialogView) SetPlatforms(names []string) {
	if v.dialog.open {
		v.dialog.platforms = names
	}
}

func (v dialogView) SetSites(names []string) {
	if v.dialog.open {
		v.dialog.sites = names
	}
}

type withsView struct{ *App }

// SetWiths ignores answers for a row the cursor has already left.
func (v withsView) SetWiths(pinID int64, row int, withs []string) {
	pin, ok := v.pins.current()
	if !ok || row != v.pins.selected || pin.ID != pinID {
		return
	}
	v.withs = withsPane{pinID: pinID, row: row, withs: withs}
}

type mainWindowView struct{ *App }

func (v mainWindowView) SetVpins(query database.PinQuery, pins []database.VersionPin) {
	v.pins.query = query
	v.pins.pins = pins
	if v.pins.selected >= len(pins) {
		v.pins.selected = max(len(pins)-1, 0)
	}
	v.updatePinsTable()
	v.requestWiths()
}

func (v mainWindowView) SetRevisions(revs []database.Revision) {
	v.history.revisions = revs
	if v.history.selected >= len(revs) {
		v.history.selected = max(len(revs)-1, 0)
	}
}

func (v mainWindowView) SetChanges(revisionID int64, changes []database.Change) {
	v.history.changesFor = revisionID
	v.history.changes = changes
}

func (v mainWindowView) VpinChangesSaved(ok bool, revisionID int64) {
	v.saving = false
	if !ok {
		v.setInfo("nothing to save")
		return
	}
	v.clearStaged()
	v.setInfo(fmt.Sprintf("saved revision %d", revisionID))
	v.requestPins()
	if v.mode == modeHistory {
		v.submit(bridge.GetRevisions{Query: database.RevisionQuery{Limit: historyLimit}})
	}
}

func (a *App) views() bridge.Views {
	return bridge.Views{
		Packages:   packagesView{a},
		Toolbar:    toolbarView{a},
		Dialog:     dialogView{a},
		Withs:      withsView{a},
		MainWindow: mainWindowView{a},
		Alerts:     a,
	}
}

// Alert shows a worker error in the status line. Only a failed save
// releases the save guard; the staged changes are kept for a retry.
func (a *App) Alert(message string) {
	if _, ok := a.answering.(bridge.SaveVpinChanges); ok {
		a.saving = false
	}
	a.setError(message)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
