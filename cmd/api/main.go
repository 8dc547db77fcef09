package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"disputeflow/config"
)

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "disputeflow",
		Short:         "Dispute lifecycle service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("DISPUTEFLOW_CONFIG"), "path to a YAML config file")

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(dispatchCmd(&configPath))
	root.AddCommand(migrateCmd(&configPath))
	root.AddCommand(seedCatalogCmd(&configPath))
	return root
}

// withRuntime loads config, builds the runtime and closes it after fn.
func withRuntime(ctx context.Context, configPath string, fn func(*Runtime) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()
	rt, err := NewRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

func serveCmd(configPath *string) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, gRPC health endpoint and outbox dispatcher",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), *configPath, func(rt *Runtime) error {
				if migrate {
					if err := rt.Migrate(cmd.Context()); err != nil {
						return err
					}
				}
				return rt.Serve(cmd.Context())
			})
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before serving")
	return cmd
}

func dispatchCmd(configPath *string) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Drain the outbox to the event bus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), *configPath, func(rt *Runtime) error {
				return rt.Dispatch(cmd.Context(), once)
			})
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single dispatch pass and exit")
	return cmd
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), *configPath, func(rt *Runtime) error {
				return rt.Migrate(cmd.Context())
			})
		},
	}
}

func seedCatalogCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-catalog [file]",
		Short: "Upsert reason, status, event type and transaction type codes from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), *configPath, func(rt *Runtime) error {
				touched, err := rt.SeedCatalog(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				for kind, n := range touched {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", kind, n)
				}
				return nil
			})
		},
	}
}
