package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"housebot/internal/app"
	"housebot/pkg/logx"
)

var version = "dev"

func rootCmd() *cli.Command {
	return &cli.Command{
		Name:    "housebot",
		Version: version,
		Usage:   "Telegram bot for a shared household: cooking plan, birthdays and house meetings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to JSON or YAML config",
				Value:   "./config.yaml",
				Sources: cli.EnvVars("HOUSEBOT_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			serveCmd(),
			migrateCmd(),
			previewCmd(),
		},
		DefaultCommand: "serve",
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the bot",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return serve(ctx, cmd.String("config"))
		},
	}
}

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the database schema and import the configured residents",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "clear",
				Usage: "drop residents, dinners and RSVPs first",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			n, err := app.Migrate(ctx, cmd.String("config"), cmd.Bool("clear"), logx.NewConsole("INFO"))
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(os.Stdout, "migrated, %d residents imported\n", n)
			return nil
		},
	}
}

func previewCmd() *cli.Command {
	return &cli.Command{
		Name:  "preview",
		Usage: "Print a generated cooking round without saving it",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "n",
				Usage: "number of dinners to print (0 prints the whole round)",
			},
			&cli.BoolFlag{
				Name:  "memory",
				Usage: "use the configured residents in a throwaway database",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return app.Preview(ctx, cmd.String("config"), int(cmd.Int("n")), cmd.Bool("memory"), os.Stdout, logx.NewConsole("WARN"))
		},
	}
}
