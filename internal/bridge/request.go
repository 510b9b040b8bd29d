package bridge

import "github.com/johan-st/vpin-tui/internal/database"

// Family groups requests by the UI component that issues them.
type Family int

const (
	FamilyPackagesTree Family = iota
	FamilyMainToolbar
	FamilyVpinDialog
	FamilyPackageWiths
	FamilyMainWindow
	FamilyTerminate
)

func (f Family) String() string {
	switch f {
	case FamilyPackagesTree:
		return "PackagesTree"
	case FamilyMainToolbar:
		return "MainToolbar"
	case FamilyVpinDialog:
		return "VpinDialog"
	case FamilyPackageWiths:
		return "PackageWiths"
	case FamilyMainWindow:
		return "MainWindow"
	case FamilyTerminate:
		return "Terminate"
	default:
		return "Unknown"
	}
}

// Request is one operation for the worker. The set of implementations is
// closed to this package.
type Request interface {
	Family() Family
	isRequest()
}

// TreeGetPackages asks for every package name.
type TreeGetPackages struct{}

// TreeGetPackageDists asks for the versions of one package.
type TreeGetPackageDists struct {
	Package string
}

// ToolbarGetShows asks for the show names shown in the toolbar.
type ToolbarGetShows struct{}

// ToolbarGetRoles asks for the role filter choices.
type ToolbarGetRoles struct{}

// ToolbarGetPlatforms asks for the platform filter choices.
type ToolbarGetPlatforms struct{}

// ToolbarGetSites asks for the site filter choices.
type ToolbarGetSites struct{}

// DialogGetLevels asks for the sequences and shots of a show.
type DialogGetLevels struct {
	Show string
}

// DialogGetRoles asks for the roles offered by the pin dialog.
type DialogGetRoles struct{}

// DialogGetPlatforms asks for the platforms offered by the pin dialog.
type DialogGetPlatforms struct{}

// DialogGetSites asks for the sites offered by the pin dialog.
type DialogGetSites struct{}

// GetPackageWiths asks for the withs of the pin displayed at Row.
type GetPackageWiths struct {
	PinID int64
	Row   int
}

// GetVpins asks for the version pins matching Query.
type GetVpins struct {
	Query database.PinQuery
}

// GetRevisions asks for the audit trail.
type GetRevisions struct {
	Query database.RevisionQuery
}

// GetChanges asks for the pin changes recorded by a revision.
type GetChanges struct {
	RevisionID int64
}

// SaveVpinChanges applies a batch of pin changes as one revision.
type SaveVpinChanges struct {
	Changes []database.PinChange
	User    string
	Comment string
}

// Terminate stops the worker. It has no response.
type Terminate struct{}

func (TreeGetPackages) Family() Family     { return FamilyPackagesTree }
func (TreeGetPackageDists) Family() Family { return FamilyPackagesTree }
func (ToolbarGetShows) Family() Family     { return FamilyMainToolbar }
func (ToolbarGetRoles) Family() Family     { return FamilyMainToolbar }
func (ToolbarGetPlatforms) Family() Family { return FamilyMainToolbar }
func (ToolbarGetSites) Family() Family     { return FamilyMainToolbar }
func (DialogGetLevels) Family() Family     { return FamilyVpinDialog }
func (DialogGetRoles) Family() Family      { return FamilyVpinDialog }
func (DialogGetPlatforms) Family() Family  { return FamilyVpinDialog }
func (DialogGetSites) Family() Family      { return FamilyVpinDialog }
func (GetPackageWiths) Family() Family     { return FamilyPackageWiths }
func (GetVpins) Family() Family            { return FamilyMainWindow }
func (GetRevisions) Family() Family        { return FamilyMainWindow }
func (GetChanges) Family() Family          { return FamilyMainWindow }
func (SaveVpinChanges) Family() Family     { return FamilyMainWindow }
func (Terminate) Family() Family           { return FamilyTerminate }

func (TreeGetPackages) isRequest()     {}
func (TreeGetPackageDists) isRequest() {}
func (ToolbarGetShows) isRequest()     {}
func (ToolbarGetRoles) isRequest()     {}
func (ToolbarGetPlatforms) isRequest() {}
func (ToolbarGetSites) isRequest()     {}
func (DialogGetLevels) isRequest()     {}
func (DialogGetRoles) isRequest()      {}
func (DialogGetPlatforms) isRequest()  {}
func (DialogGetSites) isRequest()      {}
func (GetPackageWiths) isRequest()     {}
func (GetVpins) isRequest()            {}
func (GetRevisions) isRequest()        {}
func (GetChanges) isRequest()          {}
func (SaveVpinChanges) isRequest()     {}
func (Terminate) isRequest()           {}
