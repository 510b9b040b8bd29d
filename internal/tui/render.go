package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/johan-st/vpin-tui/internal/access"
)

const (
	packagesPaneWidth = 22
	withsPaneWidth    = 24
)

// View implements tea.Model.
func (a *App) View() string {
	if a.width < 60 || a.height < 12 {
		return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center,
			errorStyle.Render("Terminal too small\nMin: 60x12"))
	}

	switch a.mode {
	case modeHelp:
		return a.renderHelp()
	case modeDialog:
		return a.renderDialog()
	case modeHistory:
		return a.renderHistory()
	}

	pinsWidth := a.width - packagesPaneWidth - withsPaneWidth
	contentHeight := a.height - 3 // toolbar, prompt and status

	var b strings.Builder
	b.WriteString(a.renderToolbar())
	b.WriteString("\n")

	content := lipgloss.JoinHorizontal(lipgloss.Top,
		a.renderPackagesPane(packagesPaneWidth, contentHeight),
		a.renderPinsPane(pinsWidth, contentHeight),
		a.renderWithsPane(withsPaneWidth, contentHeight),
	)
	b.WriteString(content)
	b.WriteString("\n")

	b.WriteString(a.renderPrompt())
	b.WriteString("\n")
	b.WriteString(a.renderStatusBar())

	return b.String()
}

func (a *App) updateSizes() {
	pinsWidth := a.width - packagesPaneWidth - withsPaneWidth
	a.pins.table.SetColumns(pinColumns(pinsWidth - 4))
	a.pins.table.SetWidth(max(pinsWidth-4, 10))
	a.pins.table.SetHeight(max(a.height-3-2, 3))
	a.help.Width = a.width
}

// pinColumns splits width between the pin table columns.
func pinColumns(width int) []table.Column {
	if width < 40 {
		width = 40
	}
	withs := 5
	rest := width - withs
	return []table.Column{
		{Title: "Package", Width: rest * 16 / 100},
		{Title: "Version", Width: rest * 16 / 100},
		{Title: "Level", Width: rest * 22 / 100},
		{Title: "Role", Width: rest * 14 / 100},
		{Title: "Platform", Width: rest * 16 / 100},
		{Title: "Site", Width: rest * 16 / 100},
		{Title: "With", Width: withs},
	}
}

// updatePinsTable rebuilds the table rows from the pins and the staged edits.
func (a *App) updatePinsTable() {
	rows := make([]table.Row, 0, len(a.pins.pins))
	for _, p := range a.pins.pins {
		version := p.Version
		if change, ok := a.staged[p.ID]; ok {
			version = change.Version + "*"
		}
		rows = append(rows, table.Row{
			p.Package,
			version,
			p.Level,
			p.Role,
			p.Platform,
			p.Site,
			strconv.Itoa(p.WithsCount),
		})
	}
	a.pins.table.SetRows(rows)
	if a.pins.selected < len(rows) {
		a.pins.table.SetCursor(a.pins.selected)
	}
}

func (a *App) renderToolbar() string {
	parts := []string{titleStyle.UnsetMarginBottom().Render("vpin-tui")}
	for _, s := range []selector{a.show, a.role, a.platform, a.site} {
		parts = append(parts, toolbarLabelStyle.Render(s.label+":")+toolbarValueStyle.Render(s.display()))
	}
	if a.packageFilter != "" {
		parts = append(parts, toolbarLabelStyle.Render("package:")+toolbarValueStyle.Render(a.packageFilter))
	}
	return strings.Join(parts, "  ")
}

func (a *App) renderPackagesPane(width, height int) string {
	focused := a.focus == FocusPackages
	visibleHeight := max(height-2, 1)

	var lines []string
	if len(a.packages.names) == 0 {
		lines = append(lines, dimItemStyle.Render("No packages"))
	}
	for i, name := range a.packages.names {
		prefix := "  "
		style := normalItemStyle
		if i == a.packages.selected && focused {
			prefix = "> "
			style = selectedItemStyle
		}
		if name == a.packageFilter {
			style = style.Underline(true)
		}
		lines = append(lines, style.Render(prefix+truncateString(name, width-6)))
		if name == a.packages.expanded {
			for _, v := range a.packages.versions[name] {
				lines = append(lines, dimItemStyle.Render("    "+truncateString(v, width-8)))
			}
		}
	}

	offset := 0
	if a.packages.selected >= visibleHeight {
		offset = a.packages.selected - visibleHeight + 1
	}
	if offset > len(lines) {
		offset = 0
	}
	return renderPaneWithTitle(strings.Join(lines[offset:], "\n"), width, height, "Packages", focused)
}

func (a *App) renderPinsPane(width, height int) string {
	focused := a.focus == FocusPins
	title := fmt.Sprintf("Pins (%d)", len(a.pins.pins))
	if n := len(a.staged); n > 0 {
		title += stagedStyle.Render(fmt.Sprintf(" %d staged", n))
	}
	if len(a.pins.pins) == 0 {
		return renderPaneWithTitle(dimItemStyle.Render("No pins"), width, height, title, focused)
	}
	return renderPaneWithTitle(a.pins.table.View(), width, height, title, focused)
}

func (a *App) renderWithsPane(width, height int) string {
	focused := a.focus == FocusWiths

	var content string
	switch {
	case a.withs.stale && a.withs.withs == nil:
		content = dimItemStyle.Render("Loading...")
	case len(a.withs.withs) == 0:
		content = dimItemStyle.Render("None")
	default:
		lines := make([]string, len(a.withs.withs))
		for i, w := range a.withs.withs {
			lines[i] = normalItemStyle.Render(truncateString(w, width-4))
		}
		content = strings.Join(lines, "\n")
	}
	return renderPaneWithTitle(content, width, height, "Withs", focused)
}

func (a *App) renderPrompt() string {
	switch {
	case a.mode == modeComment:
		return a.comment.View()
	case a.saving:
		return dimItemStyle.Render("saving...")
	case len(a.staged) > 0:
		return stagedStyle.Render(fmt.Sprintf("%d pending change(s)", len(a.staged))) +
			dimItemStyle.Render("  w:save x:discard")
	}
	return dimItemStyle.Render("e:edit pin  H:history  1-4:filters")
}

func (a *App) renderStatusBar() string {
	var leftParts []string
	var rightParts []string

	leftParts = append(leftParts, dimItemStyle.Render(a.user.DisplayName()))
	if a.status != "" {
		if a.statusErr {
			leftParts = append(leftParts, errorStyle.Render(a.status))
		} else {
			leftParts = append(leftParts, successStyle.Render(a.status))
		}
	}

	if a.offline() {
		rightParts = append(rightParts, errorStyle.Render("offline"))
	}
	if pin, ok := a.pins.current(); ok {
		rightParts = append(rightParts, statusKeyStyle.Render(pin.DistributionName()))
		rightParts = append(rightParts, dimItemStyle.Render(fmt.Sprintf("| row %d/%d", a.pins.selected+1, len(a.pins.pins))))
	}
	rightParts = append(rightParts, permissionBadge(a.permission))
	rightParts = append(rightParts, dimItemStyle.Render("| ?:help q:quit"))

	leftContent := strings.Join(leftParts, " ")
	rightContent := strings.Join(rightParts, " ")

	padding := a.width - lipgloss.Width(leftContent) - lipgloss.Width(rightContent) - 2
	if padding < 1 {
		padding = 1
	}

	content := leftContent + strings.Repeat(" ", padding) + rightContent
	return statusBarStyle.Width(a.width).Render(content)
}

func permissionBadge(p access.Permission) string {
	switch p {
	case access.Admin:
		return adminBadge.Render("ADMIN")
	case access.ReadWrite:
		return readWriteBadge.Render("RW")
	case access.ReadOnly:
		return readOnlyBadge.Render("RO")
	default:
		return noBadge.Render("NO")
	}
}

func (a *App) renderDialog() string {
	d := a.dialog
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", statusKeyStyle.Render(d.pin.Package), dimItemStyle.Render("at "+d.pin.Level))
	fmt.Fprintf(&b, "%s %s  %s %s  %s %s\n\n",
		toolbarLabelStyle.Render("role"), d.pin.Role,
		toolbarLabelStyle.Render("platform"), d.pin.Platform,
		toolbarLabelStyle.Render("site"), d.pin.Site)

	if len(d.versions) == 0 {
		b.WriteString(dimItemStyle.Render("Loading versions..."))
		b.WriteString("\n")
	}
	for i, v := range d.versions {
		prefix := "  "
		style := normalItemStyle
		if i == d.index {
			prefix = "> "
			style = selectedItemStyle
		}
		line := prefix + v
		if v == d.pin.Version {
			line += " (current)"
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}

	if d.show != "" && d.levels != nil {
		b.WriteString("\n")
		b.WriteString(toolbarLabelStyle.Render(d.show + " sequences: "))
		b.WriteString(strings.Join(d.levels.Sequences(), " "))
		b.WriteString("\n")
	}
	if len(d.roles) > 0 {
		b.WriteString(toolbarLabelStyle.Render("roles: "))
		b.WriteString(dimItemStyle.Render(strings.Join(d.roles, " ")))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimItemStyle.Render("enter:stage  esc:cancel"))

	modal := modalStyle.Render(titleStyle.Render("Edit pin") + "\n\n" + b.String())
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, modal)
}

func (a *App) renderHistory() string {
	h := a.history
	var b strings.Builder

	if len(h.revisions) == 0 {
		b.WriteString(dimItemStyle.Render("No revisions"))
		b.WriteString("\n")
	}
	for i, rev := range h.revisions {
		prefix := "  "
		style := normalItemStyle
		if i == h.selected {
			prefix = "> "
			style = selectedItemStyle
		}
		line := fmt.Sprintf("%s#%-4d %-12s %-14s %s", prefix, rev.ID,
			truncateString(rev.Author, 12), humanize.Time(rev.CreatedAt), truncateString(rev.Comment, 40))
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}

	if rev, ok := h.current(); ok && h.changesFor == rev.ID {
		b.WriteString("\n")
		b.WriteString(tableHeaderStyle.Render(fmt.Sprintf("Changes in #%d", rev.ID)))
		b.WriteString("\n")
		for _, c := range h.changes {
			fmt.Fprintf(&b, "%-10s %-16s %s -> %s\n", c.Package, c.Level, c.OldVersion, c.NewVersion)
		}
	}

	b.WriteString("\n")
	b.WriteString(dimItemStyle.Render("enter:changes  r:refresh  esc:close"))

	modal := modalStyle.Render(titleStyle.Render("History") + "\n\n" + b.String())
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, modal)
}

func (a *App) renderHelp() string {
	content := a.help.View(a.keys) + "\n\n" + dimItemStyle.Render("Press ? or Esc to close")
	modal := modalStyle.Render(titleStyle.Render("Help") + "\n\n" + content)
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, modal)
}

// buildBorderTitle builds a top border line with an embedded title.
// width is the total width including border characters.
func buildBorderTitle(width int, title string, focused bool) string {
	border := lipgloss.RoundedBorder()
	borderColor := mutedColor
	style := borderTitleStyle
	if focused {
		borderColor = primaryColor
		style = focusedBorderTitleStyle
	}
	borderStyle := lipgloss.NewStyle().Foreground(borderColor)

	// ╭─ Title ───────╮
	titleRendered := style.Render(title)
	remainingWidth := width - 5 - lipgloss.Width(titleRendered)
	if remainingWidth < 0 {
		remainingWidth = 0
	}

	var b strings.Builder
	b.WriteString(borderStyle.Render(border.TopLeft))
	b.WriteString(borderStyle.Render(border.Top))
	b.WriteString(" ")
	b.WriteString(titleRendered)
	b.WriteString(" ")
	b.WriteString(borderStyle.Render(strings.Repeat(border.Top, remainingWidth)))
	b.WriteString(borderStyle.Render(border.TopRight))
	return b.String()
}

// renderPaneWithTitle renders content in a pane with a title in the top border.
func renderPaneWithTitle(content string, width, height int, title string, focused bool) string {
	border := lipgloss.RoundedBorder()
	borderColor := mutedColor
	if focused {
		borderColor = primaryColor
	}
	borderStyle := lipgloss.NewStyle().Foreground(borderColor)

	innerWidth := max(width-2, 1)
	innerHeight := max(height-2, 1)

	lines := strings.Split(content, "\n")
	for len(lines) < innerHeight {
		lines = append(lines, "")
	}
	if len(lines) > innerHeight {
		lines = lines[:innerHeight]
	}

	var result strings.Builder
	result.WriteString(buildBorderTitle(width, title, focused))
	result.WriteString("\n")

	for _, line := range lines {
		result.WriteString(borderStyle.Render(border.Left))
		padded := " " + line
		if w := lipgloss.Width(padded); w < innerWidth {
			padded += strings.Repeat(" ", innerWidth-w)
		}
		result.WriteString(padded)
		result.WriteString(borderStyle.Render(border.Right))
		result.WriteString("\n")
	}

	result.WriteString(borderStyle.Render(border.BottomLeft))
	result.WriteString(borderStyle.Render(strings.Repeat(border.Bottom, innerWidth)))
	result.WriteString(borderStyle.Render(border.BottomRight))
	return result.String()
}

// truncateString truncates a string to maxLen, adding ellipsis if needed
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-1] + "…"
}
