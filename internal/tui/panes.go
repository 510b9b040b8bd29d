package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/johan-st/vpin-tui/internal/database"
)

// Focus represents which pane is focused
type Focus int

const (
	FocusPackages Focus = iota
	FocusPins
	FocusWiths
)

const paneCount = 3

// selector is one filter of the toolbar. The first option is always the
// empty value, meaning no filter.
type selector struct {
	label   string
	options []string
	index   int
}

func newSelector(label string) selector {
	return selector{label: label, options: []string{""}}
}

// set replaces the choices and keeps the current value when it is still
// offered.
func (s *selector) set(names []string) {
	current := s.value()
	s.options = append([]string{""}, names...)
	s.index = 0
	for i, opt := range s.options {
		if opt == current {
			s.index = i
			break
		}
	}
}

// choose selects value if it is offered.
func (s *selector) choose(value string) bool {
	for i, opt := range s.options {
		if opt == value {
			s.index = i
			return true
		}
	}
	return false
}

func (s *selector) next() {
	s.index = (s.index + 1) % len(s.options)
}

func (s selector) value() string {
	if s.index >= len(s.options) {
		return ""
	}
	return s.options[s.index]
}

func (s selector) display() string {
	if v := s.value(); v != "" {
		return v
	}
	return "all"
}

// packagesPane lists packages and the versions of the expanded one.
type packagesPane struct {
	names    []string
	selected int
	expanded string
	versions map[string][]string
}

func (p *packagesPane) setNames(names []string) {
	current := p.current()
	p.names = names
	p.selected = 0
	for i, n := range names {
		if n == current {
			p.selected = i
		}
	}
}

func (p *packagesPane) current() string {
	if p.selected < len(p.names) {
		return p.names[p.selected]
	}
	return ""
}

func (p *packagesPane) setVersions(pkg string, versions []string) {
	if p.versions == nil {
		p.versions = make(map[string][]string)
	}
	p.versions[pkg] = versions
}

// pinsPane shows the version pins matching the toolbar filter.
type pinsPane struct {
	table    table.Model
	pins     []database.VersionPin
	selected int
	query    database.PinQuery
}

func (p *pinsPane) current() (database.VersionPin, bool) {
	if p.selected < len(p.pins) {
		return p.pins[p.selected], true
	}
	return database.VersionPin{}, false
}

// withsPane shows the packages a pin is bundled with.
type withsPane struct {
	pinID int64
	row   int
	withs []string
	stale bool
}

// vpinDialog edits the version of one pin.
type vpinDialog struct {
	open      bool
	pin       database.VersionPin
	versions  []string
	index     int
	show      string
	levels    database.LevelMap
	roles     []string
	platforms []string
	sites     []string
}

func (d *vpinDialog) reset(pin database.VersionPin, versions []string) {
	*d = vpinDialog{open: true, pin: pin, show: showOf(pin.Level)}
	d.setVersions(versions)
}

func (d *vpinDialog) setVersions(versions []string) {
	d.versions = versions
	d.index = 0
	for i, v := range versions {
		if v == d.pin.Version {
			d.index = i
		}
	}
}

func (d *vpinDialog) version() string {
	if d.index < len(d.versions) {
		return d.versions[d.index]
	}
	return ""
}

// historyPane browses revisions and the changes of the chosen one.
type historyPane struct {
	revisions  []database.Revision
	selected   int
	changesFor int64
	changes    []database.Change
}

func (h *historyPane) current() (database.Revision, bool) {
	if h.selected < len(h.revisions) {
		return h.revisions[h.selected], true
	}
	return database.Revision{}, false
}

// showOf returns the show a level belongs to, or "" for the facility.
func showOf(level string) string {
	if level == database.FacilityLevel {
		return ""
	}
	show, _, _ := strings.Cut(level, ".")
	return show
}
