package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	lockTimeout time.Duration
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gamevisor",
		Short:         "Supervise a Java game server and expose it over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "gamevisor.yaml", "Path to supervisor configuration file")
	root.Flags().DurationVar(&lockTimeout, "lock-timeout", 0, "Wait this long for another supervisor to release the server directory")

	root.AddCommand(
		newRuntimesCmd(),
		newCheckConfigCmd(),
	)
	return root
}
