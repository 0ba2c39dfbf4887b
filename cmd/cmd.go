// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// serveCommand runs the HTTP gateway.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the audio gateway HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
			},
		},
		Action: r.Serve,
	}
}

// playerCommand launches the interactive terminal player.
func playerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "player",
		Aliases: []string{"tui", "play"},
		Usage:   "Browse and play songs from a running gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "gateway",
				Usage: "Base URL of the gateway",
				Value: "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "Session token (the traq_token cookie value)",
			},
		},
		Action: r.Player,
	}
}

// songsCommand lists the gateway's songs without the TUI.
func songsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "songs",
		Usage: "List songs from a running gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "gateway",
				Usage: "Base URL of the gateway",
				Value: "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "Session token (the traq_token cookie value)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Songs,
	}
}

// whoamiCommand resolves the identity behind a session token.
func whoamiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the identity behind a session token",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "gateway",
				Usage: "Base URL of the gateway",
				Value: "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "Session token (the traq_token cookie value)",
			},
		},
		Action: r.Whoami,
	}
}

// configCommand handles configuration file management.
func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a starter config.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path for the new configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.ConfigInit,
			},
			{
				Name:  "show",
				Usage: "Print the resolved configuration",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
					},
				},
				Action: r.ConfigShow,
			},
		},
	}
}
