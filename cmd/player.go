package main

import (
	"context"
	"fmt"

	"github.com/ayase-lab/traqtune/internal/gatewayclient"
	"github.com/ayase-lab/traqtune/internal/shared"
	"github.com/ayase-lab/traqtune/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"
)

// Player launches the interactive terminal player against a running gateway.
func (r *Runner) Player(ctx context.Context, cmd *cli.Command) error {
	client := gatewayclient.New(cmd.String("gateway"), cmd.String("token"), r.httpClient)

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/traqtune-player.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, client)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
