package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ssh-vom/archive-scout/internal/app"
	"github.com/ssh-vom/archive-scout/internal/config"
	"github.com/ssh-vom/archive-scout/internal/export"
	"github.com/ssh-vom/archive-scout/internal/fetch"
	"github.com/ssh-vom/archive-scout/internal/history"
	"github.com/ssh-vom/archive-scout/internal/providers/archive"
	"github.com/ssh-vom/archive-scout/internal/sizes"
)

type appState int

const (
	stateQuery appState = iota
	stateHistory
	stateFetching
	stateResults
	stateExport
	stateDownloading
	stateDownloadDone
)

const (
	latestEntries = 5
	logPaneLines  = 6
)

type entryItem struct {
	entry archive.Entry
}

func (item entryItem) Title() string {
	return fmt.Sprintf("%s  (%s)", item.entry.FileName, item.entry.SizeDisplay)
}
func (item entryItem) Description() string { return item.entry.BookName }
func (item entryItem) FilterValue() string { return item.entry.BookName + " " + item.entry.FileName }

type historyItem struct {
	search history.Search
}

func (item historyItem) Title() string       { return item.search.Label() }
func (item historyItem) Description() string { return strings.Join(item.search.FileTypes, ", ") }
func (item historyItem) FilterValue() string { return item.search.Label() }

type model struct {
	state appState

	config       config.Config
	orchestrator *fetch.Orchestrator
	downloader   *app.Downloader
	history      *history.Store

	form        queryForm
	historyList list.Model

	session       *fetch.Session
	feed          *sessionFeed
	status        fetch.Status
	sessionErr    error
	fetchProgress fetch.Progress
	entries       []archive.Entry
	latest        []string

	resultsList list.Model
	resultMarks map[int]bool
	exportInput textinput.Model

	progress        progress.Model
	progressCurrent int
	progressTotal   int
	progressMessage string
	downloadErr     error
	downloadUpdates <-chan app.ProgressUpdate

	spinner spinner.Model

	errorMessage string
	infoMessage  string

	width  int
	height int

	logChannel chan logMsg
	logLines   []string
	verbose    bool
}

type Dependencies struct {
	Orchestrator *fetch.Orchestrator
	Downloader   *app.Downloader
	History      *history.Store
	// Logs receives the application log; the pane is shown in verbose mode.
	Logs LogWriter
}

func NewModel(cfg config.Config, deps Dependencies) model {
	spinnerModel := spinner.New()
	spinnerModel.Spinner = spinner.Dot

	resultMarks := map[int]bool{}

	return model{
		state:        stateQuery,
		config:       cfg,
		orchestrator: deps.Orchestrator,
		downloader:   deps.Downloader,
		history:      deps.History,
		form:         newQueryForm(cfg.FileTypes),
		historyList:  list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0),
		resultsList:  newResultsList(nil, resultMarks, 0, 0),
		resultMarks:  resultMarks,
		exportInput:  newExportInput(),
		progress:     progress.New(progress.WithDefaultGradient()),
		spinner:      spinnerModel,
		logChannel:   deps.Logs.channel,
		verbose:      cfg.Verbose,
	}
}

func (model model) Init() tea.Cmd {
	commands := []tea.Cmd{textinput.Blink}
	if model.logChannel != nil {
		commands = append(commands, listenLogCmd(model.logChannel))
	}
	return tea.Batch(commands...)
}

func (model model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		model.width = msg.Width
		model.height = msg.Height
		model.historyList.SetSize(msg.Width-4, listHeight(msg.Height))
		model.resultsList.SetSize(resultsListWidth(msg.Width), listHeight(msg.Height))
		progressWidth := msg.Width - 10
		if progressWidth < 10 {
			progressWidth = 10
		}
		model.progress.Width = progressWidth
		return model, nil
	case sessionStartedMsg:
		if msg.err != nil {
			model.state = stateQuery
			model.errorMessage = msg.err.Error()
			return model, nil
		}
		model.feed.close()
		model.session = msg.session
		model.feed = msg.feed
		model.status = msg.session.Status()
		model.sessionErr = nil
		model.fetchProgress = fetch.Progress{}
		model.entries = nil
		model.latest = nil
		model.errorMessage = ""
		model.infoMessage = ""
		model.state = stateFetching
		model.recordHistory(msg.session)
		return model, tea.Batch(listenSessionCmd(model.feed), model.spinner.Tick)
	case entryMsg:
		if !model.isCurrent(msg.sessionID) {
			return model, nil
		}
		model.entries = append(model.entries, msg.entry)
		model.latest = append(model.latest, msg.entry.FileName)
		if len(model.latest) > latestEntries {
			model.latest = model.latest[len(model.latest)-latestEntries:]
		}
		return model, listenSessionCmd(model.feed)
	case progressMsg:
		if !model.isCurrent(msg.sessionID) {
			return model, nil
		}
		model.fetchProgress = msg.progress
		return model, listenSessionCmd(model.feed)
	case statusMsg:
		if !model.isCurrent(msg.sessionID) {
			return model, nil
		}
		model.status = msg.status
		if !msg.status.IsTerminal() {
			return model, listenSessionCmd(model.feed)
		}
		model.finishSession(msg.err)
		return model, nil
	case feedClosedMsg:
		return model, nil
	case downloadStartMsg:
		model.state = stateDownloading
		model.downloadErr = nil
		model.downloadUpdates = msg.updates
		model.progressCurrent = 0
		model.progressTotal = 0
		model.progressMessage = "Starting download"
		return model, tea.Batch(listenProgressCmd(model.downloadUpdates), model.spinner.Tick)
	case app.ProgressUpdate:
		if msg.Err != nil {
			model.downloadErr = msg.Err
		}
		if msg.Done {
			model.progressCurrent = msg.Current
			model.state = stateDownloadDone
			return model, nil
		}
		model.progressCurrent = msg.Current
		model.progressTotal = msg.Total
		model.progressMessage = msg.Message
		var progressCmd tea.Cmd
		if msg.Total > 0 {
			progressCmd = model.progress.SetPercent(float64(msg.Current) / float64(msg.Total))
		}
		return model, tea.Batch(progressCmd, listenProgressCmd(model.downloadUpdates))
	case progress.FrameMsg:
		updatedModel, cmd := model.progress.Update(msg)
		if progressModel, ok := updatedModel.(progress.Model); ok {
			model.progress = progressModel
		}
		return model, cmd
	case logMsg:
		model.logLines = append(model.logLines, string(msg))
		if len(model.logLines) > logPaneLines {
			model.logLines = model.logLines[len(model.logLines)-logPaneLines:]
		}
		return model, listenLogCmd(model.logChannel)
	}

	return model.handleStateUpdate(msg)
}

func (model *model) handleStateUpdate(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch model.state {
	case stateQuery:
		return *model, model.updateQuery(msg)
	case stateHistory:
		return *model, model.updateHistory(msg)
	case stateFetching:
		return *model, model.updateFetching(msg)
	case stateResults:
		return *model, model.updateResults(msg)
	case stateExport:
		return *model, model.updateExport(msg)
	case stateDownloading:
		var spinnerCmd tea.Cmd
		model.spinner, spinnerCmd = model.spinner.Update(msg)
		return *model, spinnerCmd
	case stateDownloadDone:
		return *model, model.updateDownloadDone(msg)
	default:
		return *model, nil
	}
}

func (model model) isCurrent(sessionID string) bool {
	return model.session != nil && model.session.ID == sessionID
}

func (model *model) finishSession(err error) {
	model.sessionErr = err
	model.feed.close()
	model.feed = nil

	model.entries = model.session.Entries()
	model.fetchProgress = model.session.Progress()
	model.resultMarks = map[int]bool{}
	model.resultsList = newResultsList(model.entries, model.resultMarks, resultsListWidth(model.width), listHeight(model.height))
	model.state = stateResults

	switch model.status {
	case fetch.StatusFailed:
		model.errorMessage = fmt.Sprintf("Search failed: %v", err)
	case fetch.StatusCancelled:
		model.infoMessage = fmt.Sprintf("Search cancelled with %d file(s)", len(model.entries))
	default:
		if model.session.FromCache {
			model.infoMessage = fmt.Sprintf("Loaded %d file(s) from cache", len(model.entries))
		} else {
			model.infoMessage = fmt.Sprintf("Found %d file(s)", len(model.entries))
		}
	}
}

func (model *model) recordHistory(session *fetch.Session) {
	if model.history == nil {
		return
	}
	if _, err := model.history.Add(history.Search{Query: session.Query, FileTypes: session.FileTypes}); err != nil {
		model.errorMessage = err.Error()
	}
}

func (model *model) updateQuery(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if ok {
		if key.String() != "enter" {
			model.errorMessage = ""
		}
		switch key.String() {
		case "esc", "ctrl+c":
			return tea.Quit
		case "tab", "shift+tab", "up", "down":
			model.form.focus = updateFormFocus(key.String(), model.form.focus, len(model.form.inputs))
			model.form = applyFormFocus(model.form)
			return nil
		case "ctrl+r":
			return model.openHistory()
		case "enter":
			query, fileTypes, err := model.form.query()
			if err != nil {
				model.errorMessage = err.Error()
				return nil
			}
			model.infoMessage = ""
			return startSearchCmd(model.orchestrator, query, fileTypes)
		}
	}

	var cmd tea.Cmd
	current := &model.form.inputs[model.form.focus]
	*current, cmd = current.Update(msg)
	return cmd
}

func (model *model) openHistory() tea.Cmd {
	if model.history == nil {
		model.errorMessage = "History unavailable"
		return nil
	}
	searches, err := model.history.Load()
	if err != nil {
		model.errorMessage = err.Error()
		return nil
	}
	if len(searches) == 0 {
		model.infoMessage = "No saved searches yet"
		return nil
	}

	// Newest first.
	items := make([]list.Item, 0, len(searches))
	for index := len(searches) - 1; index >= 0; index-- {
		items = append(items, historyItem{search: searches[index]})
	}
	model.historyList = list.New(items, list.NewDefaultDelegate(), model.width-4, listHeight(model.height))
	model.historyList.Title = "Recent searches"
	model.historyList.SetShowStatusBar(false)
	model.historyList.SetFilteringEnabled(false)
	model.historyList.SetShowHelp(false)
	model.state = stateHistory
	return nil
}

func (model *model) updateHistory(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if ok {
		switch key.String() {
		case "esc":
			model.state = stateQuery
			return nil
		case "enter":
			if selected, ok := model.historyList.SelectedItem().(historyItem); ok {
				model.form = applyFormFocus(model.form.fill(selected.search))
			}
			model.state = stateQuery
			return nil
		}
	}

	var cmd tea.Cmd
	model.historyList, cmd = model.historyList.Update(msg)
	return cmd
}

func (model *model) updateFetching(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var spinnerCmd tea.Cmd
		model.spinner, spinnerCmd = model.spinner.Update(msg)
		return spinnerCmd
	}

	model.errorMessage = ""
	switch key.String() {
	case "p":
		if err := model.orchestrator.Pause(model.session); err != nil {
			model.errorMessage = err.Error()
		}
	case "r":
		if err := model.orchestrator.Resume(model.session); err != nil {
			model.errorMessage = err.Error()
		}
	case "c", "esc":
		model.infoMessage = "Cancelling..."
		return cancelSessionCmd(model.orchestrator, model.session)
	case "ctrl+c":
		return tea.Quit
	}

	return nil
}

func (model *model) updateResults(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if ok && model.resultsList.FilterState() != list.Filtering {
		switch key.String() {
		case "esc", "n":
			model.errorMessage = ""
			model.infoMessage = ""
			model.state = stateQuery
			return nil
		case "q", "ctrl+c":
			return tea.Quit
		case " ":
			index := model.resultsList.Index()
			model.resultMarks[index] = !model.resultMarks[index]
			return nil
		case "d":
			selected := model.selectedEntries()
			if len(selected) == 0 {
				model.errorMessage = "Nothing to download"
				return nil
			}
			model.errorMessage = ""
			return startDownloadCmd(model.downloader, selected)
		case "e":
			if len(model.entries) == 0 {
				model.errorMessage = export.ErrNoResults.Error()
				return nil
			}
			model.exportInput = newExportInput()
			model.state = stateExport
			return nil
		}
	}

	var cmd tea.Cmd
	model.resultsList, cmd = model.resultsList.Update(msg)
	return cmd
}

// selectedEntries returns the marked entries, or the highlighted one when
// nothing is marked.
func (model model) selectedEntries() []archive.Entry {
	selected := markedEntries(model.resultsList.Items(), model.resultMarks)
	if len(selected) > 0 {
		return selected
	}
	if item, ok := model.resultsList.SelectedItem().(entryItem); ok {
		return []archive.Entry{item.entry}
	}
	return nil
}

func markedEntries(items []list.Item, marks map[int]bool) []archive.Entry {
	entries := []archive.Entry{}
	for index, item := range items {
		if !marks[index] {
			continue
		}
		if entry, ok := item.(entryItem); ok {
			entries = append(entries, entry.entry)
		}
	}
	return entries
}

func (model *model) updateExport(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if ok {
		switch key.String() {
		case "esc":
			model.state = stateResults
			return nil
		case "enter":
			path := strings.TrimSpace(model.exportInput.Value())
			if path == "" {
				path = model.exportInput.Placeholder
			}
			if err := export.WriteFile(path, model.entries); err != nil {
				model.errorMessage = err.Error()
				return nil
			}
			model.errorMessage = ""
			model.infoMessage = fmt.Sprintf("Results exported to %s", path)
			model.state = stateResults
			return nil
		}
	}

	var cmd tea.Cmd
	model.exportInput, cmd = model.exportInput.Update(msg)
	return cmd
}

func (model *model) updateDownloadDone(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if ok && (key.String() == "enter" || key.String() == "esc") {
		model.state = stateResults
		return nil
	}
	return nil
}

func (model model) View() string {
	view := ""

	switch model.state {
	case stateQuery:
		view = model.queryView()
	case stateHistory:
		view = lipgloss.JoinVertical(lipgloss.Left,
			model.historyList.View(),
			secondaryStyle.Render("Enter to load · esc to go back"),
		)
	case stateFetching:
		view = model.fetchingView()
	case stateResults:
		view = model.resultsView()
	case stateExport:
		lines := []string{
			titleStyle.Render("Export Results"),
			"File extension picks the format: .txt, .csv or .json",
			model.exportInput.View(),
		}
		if model.errorMessage != "" {
			lines = append(lines, warningStyle.Render(model.errorMessage))
		}
		lines = append(lines, secondaryStyle.Render("Enter to export · esc to cancel"))
		view = lipgloss.JoinVertical(lipgloss.Left, lines...)
	case stateDownloading:
		progressLine := model.progress.View()
		if model.progressTotal > 0 {
			progressLine = fmt.Sprintf("%s %d/%d", progressLine, model.progressCurrent, model.progressTotal)
		}
		view = lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Downloading"),
			model.spinner.View()+" "+model.progressMessage,
			progressLine,
		)
	case stateDownloadDone:
		message := "Download complete."
		if model.downloader != nil {
			message = fmt.Sprintf("Download complete. Files saved to %s", model.downloader.Dir())
		}
		if model.downloadErr != nil {
			message = "Download completed with errors:\n" + model.downloadErr.Error()
		}
		view = lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Done"),
			message,
			secondaryStyle.Render("Press enter to return"),
		)
	}

	if model.verbose {
		view = lipgloss.JoinVertical(lipgloss.Left, view, model.logView())
	}

	return view
}

func (model model) queryView() string {
	lines := []string{titleStyle.Render("Archive Scout")}
	for _, input := range model.form.inputs {
		lines = append(lines, input.View())
	}
	if model.errorMessage != "" {
		lines = append(lines, warningStyle.Render(model.errorMessage))
	}
	if model.infoMessage != "" {
		lines = append(lines, secondaryStyle.Render(model.infoMessage))
	}
	lines = append(lines, secondaryStyle.Render("Enter to search · tab to move · ctrl+r history · esc to quit"))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (model model) fetchingView() string {
	current := model.fetchProgress
	total := "unknown"
	if current.TotalAvailable > 0 {
		total = fmt.Sprintf("%d", current.TotalAvailable)
	}

	statusLine := model.spinner.View() + " " + model.status.String()
	if model.status == fetch.StatusPaused {
		statusLine = warningStyle.Render("Paused")
	}

	lines := []string{
		titleStyle.Render("Searching"),
		statusLine,
		model.progress.ViewAs(current.Percent / 100),
		fmt.Sprintf("Page %d · %d of %s files · %s", current.Page, current.TotalFetched, total, sizes.Format(current.TotalBytes)),
	}
	for _, name := range model.latest {
		lines = append(lines, secondaryStyle.Render("  "+name))
	}
	if model.errorMessage != "" {
		lines = append(lines, warningStyle.Render(model.errorMessage))
	}
	if model.infoMessage != "" {
		lines = append(lines, secondaryStyle.Render(model.infoMessage))
	}
	lines = append(lines, secondaryStyle.Render("p pause · r resume · c cancel"))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (model model) resultsView() string {
	listSection := []string{model.resultsList.View()}
	if model.errorMessage != "" {
		listSection = append(listSection, warningStyle.Render(model.errorMessage))
	}
	if model.infoMessage != "" {
		listSection = append(listSection, secondaryStyle.Render(model.infoMessage))
	}
	listSection = append(listSection,
		secondaryStyle.Render(fmt.Sprintf("%d file(s) · %s", len(model.entries), sizes.Format(model.fetchProgress.TotalBytes))),
		secondaryStyle.Render("Space to mark · d download · e export · / filter · n new search · q quit"),
	)

	var selected archive.Entry
	if item, ok := model.resultsList.SelectedItem().(entryItem); ok {
		selected = item.entry
	}

	listView := lipgloss.NewStyle().Width(resultsListWidth(model.width)).Render(lipgloss.JoinVertical(lipgloss.Left, listSection...))
	panel := detailPanel(selected, detailPanelWidth(model.width))

	if model.width < 80 {
		return lipgloss.JoinVertical(lipgloss.Left, listView, panel)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, listView, panel)
}

func detailPanel(entry archive.Entry, width int) string {
	if width < 20 {
		width = 20
	}
	if entry.DownloadURL == "" {
		return panelStyle.Width(width).Render(secondaryStyle.Render("Select a file to see details."))
	}

	lines := []string{
		panelTitleStyle.Render(entry.BookName),
		"",
		"File: " + entry.FileName,
		"Size: " + entry.SizeDisplay,
		"URL:  " + entry.DownloadURL,
		"",
		entry.Description,
	}
	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (model model) logView() string {
	if len(model.logLines) == 0 {
		return secondaryStyle.Render("Logs: (no entries)")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		secondaryStyle.Render("Logs:"),
		strings.Join(model.logLines, "\n"),
	)
}

func newResultsList(entries []archive.Entry, marks map[int]bool, width, height int) list.Model {
	items := make([]list.Item, 0, len(entries))
	for _, entry := range entries {
		items = append(items, entryItem{entry: entry})
	}

	resultList := list.New(items, multiSelectDelegate{selected: marks}, width, height)
	resultList.Title = "Results"
	resultList.SetShowStatusBar(false)
	resultList.SetFilteringEnabled(true)
	resultList.SetShowHelp(false)
	return resultList
}

func newExportInput() textinput.Model {
	input := textinput.New()
	input.Prompt = "Export to: "
	input.Placeholder = "archive-scout-results.txt"
	input.CharLimit = 255
	input.Focus()
	return input
}

func listHeight(height int) int {
	if height <= 10 {
		return height
	}

	return height - 8
}

func detailPanelWidth(totalWidth int) int {
	if totalWidth <= 40 {
		return totalWidth
	}

	panelWidth := totalWidth / 3
	if panelWidth < 28 {
		panelWidth = 28
	}
	if panelWidth > totalWidth-20 {
		panelWidth = totalWidth - 20
	}

	return panelWidth
}

func resultsListWidth(totalWidth int) int {
	if totalWidth < 80 {
		if totalWidth-4 < 20 {
			return 20
		}
		return totalWidth - 4
	}

	listWidth := totalWidth - detailPanelWidth(totalWidth) - 2
	if listWidth < 20 {
		listWidth = 20
	}

	return listWidth
}

var (
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	secondaryStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	warningStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	focusedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	blurStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	panelTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	panelStyle      = lipgloss.NewStyle().Padding(0, 1)
)
