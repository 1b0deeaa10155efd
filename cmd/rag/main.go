package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "rag",
		Usage: "answer customer support questions from plain-text policy documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to YAML config file (default ./config.yaml, then ~/.config/rag/config.yaml)",
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "environment file path",
				Value: ".env",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "chunk, embed and store .txt files",
				ArgsUsage: "FILE...",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    ingestAction,
			},
			{
				Name:      "ask",
				Usage:     "answer a question from the stored documents",
				ArgsUsage: "QUESTION",
				Flags: []cli.Flag{
					jsonFlag(),
					&cli.StringSliceFlag{
						Name:  "file",
						Usage: "ingest these files before asking (useful with the in-memory store)",
					},
				},
				Action: askAction,
			},
			{
				Name:      "chat",
				Usage:     "interactive chat over the stored documents",
				ArgsUsage: "[FILE...]",
				Action:    chatAction,
			},
			{
				Name:   "count",
				Usage:  "print the number of stored chunks",
				Flags:  []cli.Flag{jsonFlag()},
				Action: countAction,
			},
			{
				Name:   "clear",
				Usage:  "remove every stored chunk",
				Flags:  []cli.Flag{jsonFlag()},
				Action: clearAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "print machine-readable JSON"}
}
