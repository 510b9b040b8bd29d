package bridge

import "github.com/johan-st/vpin-tui/internal/database"

// Response is the result of one request. Tag reports the notification that
// must follow it onto the queue.
type Response interface {
	Tag() Tag
	isResponse()
}

// Packages answers TreeGetPackages.
type Packages struct {
	Names []string
}

// PackageDists answers TreeGetPackageDists.
type PackageDists struct {
	Package  string
	Versions []string
}

// ToolbarShows answers ToolbarGetShows.
type ToolbarShows struct {
	Names []string
}

// ToolbarRoles answers ToolbarGetRoles.
type ToolbarRoles struct {
	Names []string
}

// ToolbarPlatforms answers ToolbarGetPlatforms.
type ToolbarPlatforms struct {
	Names []string
}

// ToolbarSites answers ToolbarGetSites.
type ToolbarSites struct {
	Names []string
}

// DialogLevels answers DialogGetLevels.
type DialogLevels struct {
	Show   string
	Levels database.LevelMap
}

// DialogRoles answers DialogGetRoles.
type DialogRoles struct {
	Names []string
}

// DialogPlatforms answers DialogGetPlatforms.
type DialogPlatforms struct {
	Names []string
}

// DialogSites answers DialogGetSites.
type DialogSites struct {
	Names []string
}

// PackageWiths answers GetPackageWiths.
type PackageWiths struct {
	PinID int64
	Row   int
	Withs []string
}

// Vpins answers GetVpins.
type Vpins struct {
	Query database.PinQuery
	Pins  []database.VersionPin
}

// Revisions answers GetRevisions.
type Revisions struct {
	Revisions []database.Revision
}

// Changes answers GetChanges.
type Changes struct {
	RevisionID int64
	Changes    []database.Change
}

// VpinChangesSaved answers SaveVpinChanges. Ok is false when the batch was
// empty and nothing was written.
type VpinChangesSaved struct {
	Ok         bool
	RevisionID int64
}

// ErrorResponse replaces the response of any request that failed.
type ErrorResponse struct {
	Message string
}

func (Packages) Tag() Tag         { return TagPackagesTreeGetPackages }
func (PackageDists) Tag() Tag     { return TagPackagesTreeGetPackageDists }
func (ToolbarShows) Tag() Tag     { return TagMainToolbarUpdateShows }
func (ToolbarRoles) Tag() Tag     { return TagMainToolbarUpdateRoles }
func (ToolbarPlatforms) Tag() Tag { return TagMainToolbarUpdatePlatforms }
func (ToolbarSites) Tag() Tag     { return TagMainToolbarUpdateSites }
func (DialogLevels) Tag() Tag     { return TagVpinDialogUpdateLevels }
func (DialogRoles) Tag() Tag      { return TagVpinDialogUpdateRoles }
func (DialogPlatforms) Tag() Tag  { return TagVpinDialogUpdatePlatforms }
func (DialogSites) Tag() Tag      { return TagVpinDialogUpdateSites }
func (PackageWiths) Tag() Tag     { return TagPackageWithsUpdateWiths }
func (Vpins) Tag() Tag            { return TagMainWindowUpdateVpins }
func (Revisions) Tag() Tag        { return TagMainWindowUpdateRevisions }
func (Changes) Tag() Tag          { return TagMainWindowUpdateChanges }
func (VpinChangesSaved) Tag() Tag { return TagMainWindowSaveVpinChanges }
func (ErrorResponse) Tag() Tag    { return TagError }

func (Packages) isResponse()         {}
func (PackageDists) isResponse()     {}
func (ToolbarShows) isResponse()     {}
func (ToolbarRoles) isResponse()     {}
func (ToolbarPlatforms) isResponse() {}
func (ToolbarSites) isResponse()     {}
func (DialogLevels) isResponse()     {}
func (DialogRoles) isResponse()      {}
func (DialogPlatforms) isResponse()  {}
func (DialogSites) isResponse()      {}
func (PackageWiths) isResponse()     {}
func (Vpins) isResponse()            {}
func (Revisions) isResponse()        {}
func (Changes) isResponse()          {}
func (VpinChangesSaved) isResponse() {}
func (ErrorResponse) isResponse()    {}
