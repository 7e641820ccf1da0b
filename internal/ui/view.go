package ui

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"

	"djladder/internal/ladder"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/progress"
	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	clog "github.com/charmbracelet/log"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
)

type applyMsg struct {
	fn func(*Root)
}

type ladderKeyMap struct {
	Mode          key.Binding
	LevelDown     key.Binding
	LevelUp       key.Binding
	Start         key.Binding
	Success       key.Binding
	Fail          key.Binding
	Clear         key.Binding
	ResetClears   key.Binding
	ResetProgress key.Binding
	Help          key.Binding
	Quit          key.Binding
}

func (k ladderKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Success, k.Fail, k.Clear, k.Help, k.Quit}
}

func (k ladderKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Mode, k.LevelDown, k.LevelUp, k.Start},
		{k.Success, k.Fail, k.Clear},
		{k.ResetClears, k.ResetProgress, k.Help, k.Quit},
	}
}

var forceQuit = key.NewBinding(key.WithKeys("ctrl+q", "ctrl+c"))

type confirmKind int

const (
	confirmNone confirmKind = iota
	confirmClears
	confirmProgress
)

type Root struct {
	theme  Theme
	ascii  bool
	debug  bool
	ctrl   Controller
	logger *clog.Logger

	mu      sync.Mutex
	program *tea.Program
	running bool

	layout LayoutMode
	cols   int
	rows   int

	state       ScreenState
	statusFlash string
	fetching    bool

	confirm      confirmKind
	confirmIndex int
	helpOpen     bool

	help   help.Model
	keymap ladderKeyMap
	bar    progress.Model
	spin   spinner.Model

	lastKey string
}

type Options struct {
	ASCIIOnly    bool
	Debug        bool
	StyleVariant string
	Logger       *clog.Logger
}

func New(opts Options) *Root {
	logger := opts.Logger
	if logger == nil {
		logger = clog.NewWithOptions(os.Stderr, clog.Options{Prefix: "djladder-ui", Level: clog.WarnLevel})
		if opts.Debug {
			logger.SetLevel(clog.DebugLevel)
		}
	}

	theme := ThemeForVariant(strings.TrimSpace(opts.StyleVariant))
	h := help.New()
	h.Styles = help.DefaultDarkStyles()
	bar := progress.New(
		progress.WithWidth(20),
		progress.WithColors(theme.BarFrom, theme.BarTo),
		progress.WithoutPercentage(),
	)
	spin := spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(theme.Accent),
	)

	r := &Root{
		theme:  theme,
		ascii:  opts.ASCIIOnly,
		debug:  opts.Debug,
		logger: logger,
		layout: LayoutWide,
		cols:   100,
		rows:   24,
		help:   h,
		bar:    bar,
		spin:   spin,
		state: ScreenState{
			Mode:  string(ladder.DefaultMode),
			Level: ladder.DefaultLevel,
		},
	}
	r.keymap = ladderKeyMap{
		Mode:          key.NewBinding(key.WithKeys("1", "2", "3", "4"), key.WithHelp("1-4", "mode")),
		LevelDown:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "level down")),
		LevelUp:       key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "level up")),
		Start:         key.NewBinding(key.WithKeys("enter", "s"), key.WithHelp("enter", "start")),
		Success:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "success")),
		Fail:          key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "fail")),
		Clear:         key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cleared")),
		ResetClears:   key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reset clears")),
		ResetProgress: key.NewBinding(key.WithKeys("P"), key.WithHelp("P", "reset progress")),
		Help:          key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "keys")),
		Quit:          key.NewBinding(key.WithKeys("q", "ctrl+q"), key.WithHelp("q", "quit")),
	}
	if r.ascii {
		r.keymap.LevelDown.SetHelp("left", "level down")
		r.keymap.LevelUp.SetHelp("right", "level up")
	}
	return r
}

func (r *Root) Init() tea.Cmd {
	return spinnerTickCmd(r.spin)
}

func (r *Root) Update(msg tea.Msg) (model tea.Model, cmd tea.Cmd) {
	defer func() {
		if rec := recover(); rec != nil {
			r.onModelPanic("update", rec, msg)
			model = r
			cmd = nil
		}
	}()

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.cols = msg.Width
		r.rows = msg.Height
		r.layout = DetermineLayoutMode(r.cols, r.rows)
		return r, nil
	case applyMsg:
		if msg.fn != nil {
			msg.fn(r)
		}
		return r, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		r.spin, cmd = r.spin.Update(msg)
		return r, cmd
	case tea.KeyPressMsg:
		return r.handleKey(msg)
	}
	return r, nil
}

func (r *Root) View() (view tea.View) {
	defer func() {
		if rec := recover(); rec != nil {
			r.onModelPanic("view", rec, nil)
			width := max(1, r.cols)
			msg := "UI recovered from a rendering panic. Check logs."
			view = tea.NewView(r.theme.Fail.Width(width).Render(trimForWidth(msg, max(1, width-1))))
		}
	}()

	if r.cols < 1 {
		r.cols = 100
	}
	if r.rows < 1 {
		r.rows = 24
	}

	base := r.render()
	if overlay := r.renderOverlay(); overlay != "" {
		base = composeOverlay(base, overlay, r.cols, r.rows)
	}
	v := tea.NewView(base)
	v.AltScreen = true
	return v
}

func (r *Root) Run() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	p := tea.NewProgram(r)
	r.program = p
	r.running = true
	r.mu.Unlock()

	_, err := p.Run()

	r.mu.Lock()
	r.program = nil
	r.running = false
	r.mu.Unlock()
	return err
}

func (r *Root) Stop() {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Quit()
	}
}

func (r *Root) SetController(c Controller) {
	r.ctrl = c
}

func (r *Root) SetScreen(s ScreenState) {
	s.Modes = append([]string(nil), s.Modes...)
	if s.Candidate != nil {
		c := *s.Candidate
		s.Candidate = &c
	}
	r.apply(func(m *Root) {
		m.state = s
	})
}

func (r *Root) SetFetching(fetching bool) {
	r.apply(func(m *Root) {
		m.fetching = fetching
	})
}

func (r *Root) FlashStatus(msg string) {
	r.apply(func(m *Root) {
		m.statusFlash = msg
	})
}

func (r *Root) apply(fn func(*Root)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	p := r.program
	running := r.running
	if !running || p == nil {
		fn(r)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	p.Send(applyMsg{fn: fn})
}

// dispatchController runs controller callbacks off the update loop; the
// controller may block on the network and pushes state back through apply.
func (r *Root) dispatchController(fn func(Controller)) {
	if fn == nil || r.ctrl == nil {
		return
	}
	ctrl := r.ctrl
	go fn(ctrl)
}

func (r *Root) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	r.lastKey = msg.String()

	if key.Matches(msg, forceQuit) {
		r.dispatchController(func(c Controller) { c.OnQuit() })
		return r, nil
	}
	if r.confirm != confirmNone {
		return r.handleConfirmKey(msg)
	}
	if r.helpOpen {
		if msg.Code == tea.KeyEsc || key.Matches(msg, r.keymap.Help, r.keymap.Quit) {
			r.helpOpen = false
		}
		return r, nil
	}

	switch {
	case key.Matches(msg, r.keymap.Quit):
		r.dispatchController(func(c Controller) { c.OnQuit() })
	case key.Matches(msg, r.keymap.Help):
		r.helpOpen = true
	case key.Matches(msg, r.keymap.Mode):
		r.selectMode(msg.String())
	case key.Matches(msg, r.keymap.LevelDown):
		r.stepPicker(false)
	case key.Matches(msg, r.keymap.LevelUp):
		r.stepPicker(true)
	case key.Matches(msg, r.keymap.Start):
		if r.fetching {
			return r, nil
		}
		r.dispatchController(func(c Controller) { c.OnStart() })
	case key.Matches(msg, r.keymap.Success):
		if r.requireStarted() {
			r.dispatchController(func(c Controller) { c.OnSuccess() })
		}
	case key.Matches(msg, r.keymap.Fail):
		if r.requireStarted() {
			r.dispatchController(func(c Controller) { c.OnFail() })
		}
	case key.Matches(msg, r.keymap.Clear):
		if r.state.Candidate == nil {
			r.statusFlash = "No song is displayed"
			return r, nil
		}
		r.dispatchController(func(c Controller) { c.OnToggleClear() })
	case key.Matches(msg, r.keymap.ResetClears):
		r.confirm = confirmClears
		r.confirmIndex = 0
	case key.Matches(msg, r.keymap.ResetProgress):
		r.confirm = confirmProgress
		r.confirmIndex = 0
	}
	return r, nil
}

// Outcome keys stay disabled until the first start.
func (r *Root) requireStarted() bool {
	if r.state.Started {
		return true
	}
	r.statusFlash = "Press enter to start first"
	return false
}

func (r *Root) selectMode(digit string) {
	idx := int(digit[0] - '1')
	if idx < 0 || idx >= len(r.state.Modes) {
		return
	}
	mode := r.state.Modes[idx]
	if mode == r.state.Mode {
		return
	}
	r.dispatchController(func(c Controller) { c.OnModeChanged(mode) })
}

func (r *Root) stepPicker(up bool) {
	next := ladder.Step(r.state.Level, up)
	if ladder.Equal(next, r.state.Level) {
		return
	}
	r.state.Level = next
	r.dispatchController(func(c Controller) { c.OnLevelChanged(next) })
}

func (r *Root) handleConfirmKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Code == tea.KeyEsc || msg.String() == "n" || msg.String() == "q":
		r.confirm = confirmNone
	case msg.Code == tea.KeyLeft || msg.Code == tea.KeyUp:
		r.confirmIndex = 0
	case msg.Code == tea.KeyRight || msg.Code == tea.KeyDown || msg.Code == tea.KeyTab:
		r.confirmIndex = 1
	case msg.String() == "y":
		r.acceptConfirm()
	case msg.Code == tea.KeyEnter:
		if r.confirmIndex == 1 {
			r.acceptConfirm()
		} else {
			r.confirm = confirmNone
		}
	}
	return r, nil
}

func (r *Root) acceptConfirm() {
	kind := r.confirm
	r.confirm = confirmNone
	r.confirmIndex = 0
	switch kind {
	case confirmClears:
		r.dispatchController(func(c Controller) { c.OnResetClears() })
	case confirmProgress:
		r.dispatchController(func(c Controller) { c.OnResetProgress() })
	}
}

func (r *Root) render() string {
	w, h := r.cols, r.rows
	if r.layout == LayoutTooSmall {
		msg := []string{
			"Terminal too small",
			fmt.Sprintf("Current: %dx%d", w, h),
			"Minimum: 50x16",
		}
		panel := r.drawPanel("Resize Required", msg, min(40, w), min(7, h))
		return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, panel)
	}

	bodyH := max(3, h-2)
	var body string
	if r.layout == LayoutWide {
		sideW := 34
		main := r.drawPanel("Ladder", r.ladderLines(w-sideW-2), w-sideW, bodyH)
		side := r.drawPanel("Stats", r.statsLines(), sideW, bodyH)
		body = lipgloss.JoinHorizontal(lipgloss.Top, main, side)
	} else {
		lines := append(r.ladderLines(w-2), "")
		lines = append(lines, r.statsLines()...)
		body = r.drawPanel("Ladder", lines, w, bodyH)
	}
	return r.headerText() + "\n" + body + "\n" + r.statusText()
}

func (r *Root) ladderLines(width int) []string {
	modes := make([]string, 0, len(r.state.Modes))
	for i, m := range r.state.Modes {
		label := fmt.Sprintf(" %d:%s ", i+1, m)
		if m == r.state.Mode {
			label = r.theme.Selected.Render(fmt.Sprintf("[%d:%s]", i+1, m))
		}
		modes = append(modes, label)
	}

	left, right := "◀", "▶"
	if r.ascii {
		left, right = "<", ">"
	}
	level := fmt.Sprintf("%s %s %s", left, ladder.Format(r.state.Level), right)
	if ladder.Equal(r.state.Level, ladder.Lowest()) {
		level = "  " + ladder.Format(r.state.Level) + " " + right
	} else if ladder.Equal(r.state.Level, ladder.Highest()) {
		level = left + " " + ladder.Format(r.state.Level)
	}

	lines := []string{
		"Mode      " + strings.Join(modes, " "),
		"Level     " + r.theme.Accent.Render(level),
		"",
	}
	if r.state.Started {
		count := fmt.Sprintf("%d/%d", r.state.Played, r.state.Remaining)
		lines = append(lines, "Progress  "+count+"  "+r.progressBar(max(8, min(30, width-20-len(count)))))
	} else {
		lines = append(lines, "Progress  "+r.theme.Muted.Render("-"))
	}
	lines = append(lines, "")

	if c := r.state.Candidate; c != nil {
		star := "★"
		if r.ascii {
			star = "*"
		}
		lines = append(lines, r.theme.Pass.Render(fmt.Sprintf("%s %s - %s(%s)", star, c.Song, c.Pattern, ladder.Format(c.Floor))))
		box := "[ ]"
		if c.Cleared {
			box = "[x]"
		}
		lines = append(lines, box+" cleared")
	} else if r.state.Message != "" {
		lines = append(lines, r.theme.Pending.Render(r.state.Message))
	}
	return lines
}

func (r *Root) statsLines() []string {
	lines := []string{r.theme.PanelTitle.Render("Song data")}
	if r.state.CatalogUpdated.IsZero() {
		lines = append(lines, r.theme.Muted.Render("no local data"))
	} else {
		lines = append(lines,
			humanize.Comma(int64(r.state.CatalogSongs))+" songs",
			"updated "+humanize.Time(r.state.CatalogUpdated),
		)
	}
	s := r.state.Session
	lines = append(lines,
		"",
		r.theme.PanelTitle.Render("Session"),
		r.theme.Pass.Render(fmt.Sprintf("success %d", s.Successes)),
		r.theme.Fail.Render(fmt.Sprintf("fail    %d", s.Failures)),
		humanize.Comma(int64(s.Lifetime))+" attempts all time",
	)
	return lines
}

func (r *Root) progressBar(width int) string {
	pct := 0.0
	if r.state.Remaining > 0 {
		pct = float64(r.state.Played) / float64(r.state.Remaining)
	}
	if r.ascii {
		filled := int(pct * float64(width))
		return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
	}
	m := r.bar
	m.SetWidth(width)
	return m.ViewAs(pct)
}

func (r *Root) headerText() string {
	width := max(1, r.cols-1)
	parts := []string{"DJ Ladder", r.state.Mode, "Lv " + ladder.Format(r.state.Level)}
	txt := trimForWidth(strings.Join(parts, " | "), width)
	if r.debug {
		txt = trimForWidth(fmt.Sprintf("%s | %dx%d %v", txt, r.cols, r.rows, r.layout), width)
	}
	return r.theme.Header.Width(max(1, r.cols)).Render(txt)
}

func (r *Root) statusText() string {
	keys := r.help.View(r.keymap)
	if r.fetching {
		keys += " | " + r.theme.Accent.Render(strings.TrimSpace(r.spin.View())+" Updating song data...")
	}
	if r.statusFlash != "" {
		keys += " | " + r.statusFlash
	}
	keys = trimForWidth(keys, max(1, r.cols-1))
	return r.theme.Status.Width(max(1, r.cols)).Render(keys)
}

func (r *Root) renderOverlay() string {
	var (
		title string
		lines []string
	)
	switch {
	case r.confirm != confirmNone:
		title = "Confirm Reset"
		question := "Reset every clear mark?"
		if r.confirm == confirmProgress {
			question = "Reset played songs at every level?"
		}
		lines = []string{question, ""}
		for i, label := range []string{"Cancel", "Reset"} {
			prefix := "  "
			if i == r.confirmIndex {
				prefix = "> "
			}
			lines = append(lines, prefix+label)
		}
		lines = append(lines, "", "y: Reset  n/Esc: Cancel")
	case r.helpOpen:
		title = "Keys"
		for _, group := range r.keymap.FullHelp() {
			for _, b := range group {
				h := b.Help()
				lines = append(lines, fmt.Sprintf("%-7s %s", h.Key, h.Desc))
			}
		}
		lines = append(lines, "", "Esc/?: Close")
	default:
		return ""
	}
	w := min(max(40, r.cols/2), r.cols)
	return r.drawPanel(title, lines, w, len(lines)+2)
}

type borderSet struct {
	h, v, tl, tr, bl, br string
}

var (
	lineBorder  = borderSet{h: "─", v: "│", tl: "┌", tr: "┐", bl: "└", br: "┘"}
	asciiBorder = borderSet{h: "-", v: "|", tl: "+", tr: "+", bl: "+", br: "+"}
)

func (r *Root) drawPanel(title string, lines []string, width, height int) string {
	width = max(4, width)
	height = max(3, height)
	innerW := width - 2
	b := lineBorder
	if r.ascii {
		b = asciiBorder
	}

	top := b.tl + strings.Repeat(b.h, innerW) + b.tr
	if title != "" && innerW > 2 {
		label := ansi.Truncate(" "+title+" ", innerW, "")
		top = b.tl + label + strings.Repeat(b.h, innerW-ansi.StringWidth(label)) + b.tr
	}
	side := r.theme.PanelBorder.Render(b.v)

	out := make([]string, 0, height)
	out = append(out, r.theme.PanelBorder.Render(top))
	for row := 0; row < height-2; row++ {
		line := ""
		if row < len(lines) {
			line = lines[row]
		}
		out = append(out, side+r.theme.PanelBody.Render(padCell(line, innerW))+side)
	}
	out = append(out, r.theme.PanelBorder.Render(b.bl+strings.Repeat(b.h, innerW)+b.br))
	return strings.Join(out, "\n")
}

func spinnerTickCmd(model spinner.Model) tea.Cmd {
	return func() tea.Msg {
		return model.Tick()
	}
}

// padCell pads or cuts a possibly styled line to exactly width cells.
func padCell(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = strings.ReplaceAll(s, "\t", "    ")
	if ansi.StringWidth(s) > width {
		s = ansi.Truncate(s, width, "")
	}
	if w := ansi.StringWidth(s); w < width {
		s += strings.Repeat(" ", width-w)
	}
	return s
}

// composeOverlay centers overlay on base. Both are flattened to plain text.
func composeOverlay(base, overlay string, cols, rows int) string {
	if cols <= 0 || rows <= 0 {
		return base
	}
	under := strings.Split(ansi.Strip(base), "\n")
	over := strings.Split(strings.TrimRight(ansi.Strip(overlay), "\n"), "\n")
	ow := 1
	for _, line := range over {
		ow = max(ow, ansi.StringWidth(line))
	}
	ow = min(ow, cols)
	top := (rows - min(len(over), rows)) / 2
	left := (cols - ow) / 2

	out := make([]string, rows)
	for i := range out {
		line := ""
		if i < len(under) {
			line = under[i]
		}
		line = padCell(line, cols)
		if j := i - top; j >= 0 && j < len(over) {
			line = ansi.Truncate(line, left, "") + padCell(over[j], ow) + ansi.TruncateLeft(line, left+ow, "")
		}
		out[i] = line
	}
	return strings.Join(out, "\n")
}

// trimForWidth flattens s to one plain line of at most width cells.
func trimForWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(strings.ReplaceAll(ansi.Strip(s), "\n", " "), width, "…")
}

func (r *Root) onModelPanic(where string, recovered any, msg tea.Msg) {
	if r.statusFlash == "" {
		r.statusFlash = "Recovered UI panic"
	}
	r.logger.Error("ui.panic_recovered",
		"where", where,
		"panic", fmt.Sprint(recovered),
		"msg", fmt.Sprintf("%T", msg),
		"size", fmt.Sprintf("%dx%d", r.cols, r.rows),
		"last_key", r.lastKey,
		"stack", string(debug.Stack()),
	)
}

var _ tea.Model = (*Root)(nil)
var _ View = (*Root)(nil)
