package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "deploytrack",
		Usage: "Track contract deployments on an EVM chain",
		Commands: []*cli.Command{
			{
				Name:   "scan",
				Usage:  "Scan a fixed block range for contract deployments",
				Flags:  scanFlags(),
				Action: scan,
			},
			{
				Name:   "watch",
				Usage:  "Follow the chain head and record new contract deployments",
				Flags:  watchFlags(),
				Action: watch,
			},
			{
				Name:   "remove",
				Usage:  "Delete persisted checkpoints and deployments for a chain",
				Flags:  removeFlags(),
				Action: remove,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
