package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ssh-vom/archive-scout/internal/ui"
)

func runTUI(flags *globalFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	// Anything written to the terminal would tear the UI, so logs go to the
	// log pane instead.
	logs := ui.NewLogWriter()
	log := newLogger(cfg, logs)

	deps, err := buildDependencies(cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	program := tea.NewProgram(ui.NewModel(cfg, ui.Dependencies{
		Orchestrator: deps.orchestrator,
		Downloader:   deps.downloader,
		History:      deps.history,
		Logs:         logs,
	}), tea.WithAltScreen())

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	if session := deps.orchestrator.Current(); session != nil && session.Status().IsActive() {
		session.Cancel()
	}
	return nil
}
