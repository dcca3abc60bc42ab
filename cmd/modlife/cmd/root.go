// Package cmd implements the modlife command line: catalog listing,
// module activation and deactivation, and deactivation impact previews
// for a tenant.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

// NewRootCommand creates the root command for the modlife application.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modlife",
		Short: "Tenant module lifecycle operations",
		Long: `modlife activates and deactivates catalog modules for tenants.
Activation runs the module's schema migrations, creates its storage
structure, and writes its configuration; deactivation tears all of
that down again.`,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to a YAML or TOML settings file (env overrides apply on top)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")

	cmd.AddCommand(NewModulesCommand())
	cmd.AddCommand(NewActivateCommand())
	cmd.AddCommand(NewDeactivateCommand())
	cmd.AddCommand(NewImpactCommand())

	return cmd
}

// Version information
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// PrintVersion prints version information
func PrintVersion() string {
	return fmt.Sprintf("modlife v%s (commit: %s, built on: %s)", Version, Commit, Date)
}
