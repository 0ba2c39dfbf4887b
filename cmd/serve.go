package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ayase-lab/traqtune/internal/gateway"
	"github.com/ayase-lab/traqtune/internal/traq"
	"github.com/urfave/cli/v3"
)

// Serve validates configuration, wires the upstream client and runs the
// gateway until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.reloadConfig(cmd)
	if err != nil {
		return err
	}

	if err := config.Validate(); err != nil {
		return err
	}

	client, err := traq.NewClient(
		config.Upstream.BaseURL,
		config.OAuth.ClientID,
		config.OAuth.ClientSecret,
		config.OAuth.RedirectURL,
	)
	if err != nil {
		return err
	}

	gw := gateway.New(config, client, r.logger)
	server := gateway.NewServer(gw)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r.logger.Info("serving channel audio", "channel", config.Upstream.ChannelID, "upstream", config.Upstream.BaseURL)
	return server.Serve(ctx)
}
