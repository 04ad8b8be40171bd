package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/proinvest/advisor/internal/client"
	"github.com/proinvest/advisor/internal/config"
	"github.com/proinvest/advisor/internal/logging"
	"github.com/proinvest/advisor/internal/tui"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{Level: "debug", File: cfg.LogFile, Discard: true})
	defer logger.Sync() //nolint:errcheck

	p := tea.NewProgram(
		tui.NewRootModel(client.New(cfg.ServerURL), cfg.Agent, logger),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
