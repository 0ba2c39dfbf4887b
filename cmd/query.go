package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayase-lab/traqtune/internal/gatewayclient"
	"github.com/ayase-lab/traqtune/internal/shared"
	"github.com/urfave/cli/v3"
)

// Songs lists the gateway's songs on the command line.
func (r *Runner) Songs(ctx context.Context, cmd *cli.Command) error {
	client := gatewayclient.New(cmd.String("gateway"), cmd.String("token"), r.httpClient)

	songs, err := client.Songs(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrUnauthorized) {
			return fmt.Errorf("%w: sign in at %s and pass the session token with --token", err, client.LoginURL())
		}
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(songs, cmd.Bool("pretty"))
	}

	if len(songs) == 0 {
		return r.writePlain("No songs in the channel\n")
	}

	for _, song := range songs {
		if err := r.writePlain("%s  %s (%s)\n", song.ID, song.Name, song.MIME); err != nil {
			return err
		}
	}
	return nil
}

// Whoami resolves and prints the identity behind a session token.
func (r *Runner) Whoami(ctx context.Context, cmd *cli.Command) error {
	client := gatewayclient.New(cmd.String("gateway"), cmd.String("token"), r.httpClient)

	profile, err := client.Me(ctx)
	if err != nil {
		return err
	}

	if profile == nil {
		return r.writePlain("Not signed in\n")
	}

	return r.writeJSON(profile, true)
}
