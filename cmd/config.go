package main

import (
	"context"

	"github.com/ayase-lab/traqtune/internal/shared"
	"github.com/urfave/cli/v3"
)

// ConfigInit writes a starter configuration file from the embedded example.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Infof("wrote starter config to %v", path)
	return r.writePlain("✓ Created %s — fill in the oauth and upstream sections\n", path)
}

// ConfigShow prints the resolved configuration with the client secret masked.
func (r *Runner) ConfigShow(ctx context.Context, cmd *cli.Command) error {
	config, err := r.reloadConfig(cmd)
	if err != nil {
		return err
	}

	masked := *config
	if masked.OAuth.ClientSecret != "" {
		masked.OAuth.ClientSecret = "********"
	}

	return r.writeJSON(masked, true)
}
