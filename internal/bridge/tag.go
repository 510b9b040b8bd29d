package bridge

import "fmt"

// Tag names the response family that was just enqueued. It carries no
// payload; its string form crosses into the UI event loop.
type Tag int

const (
	// TagReset never has a paired response. The handler ignores it.
	TagReset Tag = iota
	// TagError pairs with an ErrorResponse from any family.
	TagError

	TagPackagesTreeGetPackages
	TagPackagesTreeGetPackageDists

	TagMainToolbarUpdateShows
	TagMainToolbarUpdateRoles
	TagMainToolbarUpdatePlatforms
	TagMainToolbarUpdateSites

	TagVpinDialogUpdateLevels
	TagVpinDialogUpdateRoles
	TagVpinDialogUpdatePlatforms
	TagVpinDialogUpdateSites

	TagPackageWithsUpdateWiths

	TagMainWindowUpdateVpins
	TagMainWindowUpdateRevisions
	TagMainWindowUpdateChanges
	TagMainWindowSaveVpinChanges

	tagCount
)

var tagNames = [tagCount]string{
	TagReset:                       "Reset",
	TagError:                       "Error",
	TagPackagesTreeGetPackages:     "PackagesTree::GetPackages",
	TagPackagesTreeGetPackageDists: "PackagesTree::GetPackageDists",
	TagMainToolbarUpdateShows:      "MainToolbar::UpdateShows",
	TagMainToolbarUpdateRoles:      "MainToolbar::UpdateRoles",
	TagMainToolbarUpdatePlatforms:  "MainToolbar::UpdatePlatforms",
	TagMainToolbarUpdateSites:      "MainToolbar::UpdateSites",
	TagVpinDialogUpdateLevels:      "VpinDialog::UpdateLevels",
	TagVpinDialogUpdateRoles:       "VpinDialog::UpdateRoles",
	TagVpinDialogUpdatePlatforms:   "VpinDialog::UpdatePlatforms",
	TagVpinDialogUpdateSites:       "VpinDialog::UpdateSites",
	TagPackageWithsUpdateWiths:     "PackageWiths::UpdateWiths",
	TagMainWindowUpdateVpins:       "MainWindow::UpdateVpins",
	TagMainWindowUpdateRevisions:   "MainWindow::UpdateRevisions",
	TagMainWindowUpdateChanges:     "MainWindow::UpdateChanges",
	TagMainWindowSaveVpinChanges:   "MainWindow::SaveVpinChanges",
}

var tagsByName = func() map[string]Tag {
	m := make(map[string]Tag, tagCount)
	for t, name := range tagNames {
		m[name] = Tag(t)
	}
	return m
}()

// String returns the wire form of the tag.
func (t Tag) String() string {
	if t < 0 || t >= tagCount {
		return fmt.Sprintf("Tag(%d)", int(t))
	}
	return tagNames[t]
}

// ParseTag decodes the wire form of a tag.
func ParseTag(s string) (Tag, error) {
	t, ok := tagsByName[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTag, s)
	}
	return t, nil
}

// Tags returns every tag value.
func Tags() []Tag {
	tags := make([]Tag, tagCount)
	for i := range tags {
		tags[i] = Tag(i)
	}
	return tags
}
