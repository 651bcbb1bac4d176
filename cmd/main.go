package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
)

const commandName = "nightfall-dashboard"

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   commandName,
		Short: "Mission-control link service for the Nightfall robot",
		Long: `nightfall-dashboard keeps a WebSocket link to the robot, decodes its
telemetry, relays motor commands, renders the camera stream and serves
the operator dashboard API.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to the config file (default configs/config.yml)")

	cmd.AddCommand(newServeCommand(opts), newStatusCommand())
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
