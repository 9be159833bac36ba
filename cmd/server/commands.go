package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"gamevisor/internal/config"
	"gamevisor/internal/service"
)

// newRuntimesCmd lists the Java runtimes found on this host.
func newRuntimesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runtimes",
		Short: "List installed Java runtimes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			found := service.NewJavaFinder().Find(cmd.Context())
			if len(found) == 0 {
				return service.ErrRuntimeNotFound
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tVALID\tPATH")
			for _, rt := range found {
				fmt.Fprintf(tw, "%s\t%t\t%s\n", rt.Version, rt.Valid, rt.Path)
			}
			return tw.Flush()
		},
	}
}

// newCheckConfigCmd loads and validates the configuration file.
func newCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the supervisor configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSupervisorConfig(configPath)
			if err != nil {
				return errors.Wrapf(err, "load %s", configPath)
			}
			if err := cfg.Validate(); err != nil {
				return errors.Wrap(err, configPath)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (server %q in %s, %d task(s))\n",
				configPath, cfg.Server.Name, cfg.Server.Directory, len(cfg.Tasks))
			return nil
		},
	}
}
