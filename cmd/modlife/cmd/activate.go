package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saasforge/modlife"
	"github.com/saasforge/modlife/installer"
)

// NewActivateCommand creates the activate command.
func NewActivateCommand() *cobra.Command {
	var setFlags []string

	cmd := &cobra.Command{
		Use:   "activate <tenant> <module> [module...]",
		Short: "Activate modules for a tenant",
		Long: `Activate one or more catalog modules for a tenant. With several
modules the batch activates them in dependency order and continues past
individual failures.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, err := buildEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.Close(ctx)

			moduleConfig, err := parseSetFlags(setFlags)
			if err != nil {
				return err
			}

			tenant := modlife.TenantID(args[0])
			modules := args[1:]

			if len(modules) == 1 {
				record, err := eng.installer.Activate(ctx, tenant, modules[0], moduleConfig)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "activated %s for tenant %s (schema version %s)\n",
					record.Module, record.Tenant, record.SchemaVersion)
				return nil
			}

			requests := make([]installer.ActivationRequest, 0, len(modules))
			for _, module := range modules {
				requests = append(requests, installer.ActivationRequest{Module: module, Config: moduleConfig})
			}
			results, err := eng.installer.ActivateBatch(ctx, tenant, requests)
			printBatchResults(cmd, results)
			return err
		},
	}

	cmd.Flags().StringArrayVar(&setFlags, "set", nil,
		"module config entry as key=value (repeatable)")
	return cmd
}

// NewDeactivateCommand creates the deactivate command.
func NewDeactivateCommand() *cobra.Command {
	var force bool
	var backupPath string

	cmd := &cobra.Command{
		Use:   "deactivate <tenant> <module> [module...]",
		Short: "Deactivate modules for a tenant",
		Long: `Deactivate one or more modules for a tenant. With several modules
the batch deactivates dependents before their dependencies and stops at
the first failure.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tenant := modlife.TenantID(args[0])
			modules := args[1:]

			opts := installer.DeactivateOptions{Force: force}
			if backupPath != "" {
				if len(modules) > 1 {
					return errors.New("--backup supports a single module")
				}
				backup, err := os.Create(backupPath)
				if err != nil {
					return fmt.Errorf("creating backup file: %w", err)
				}
				defer backup.Close()
				opts.BackupTo = backup
			}

			eng, err := buildEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.Close(ctx)

			if len(modules) == 1 {
				record, err := eng.installer.Deactivate(ctx, tenant, modules[0], opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deactivated %s for tenant %s\n",
					record.Module, record.Tenant)
				return nil
			}

			results, err := eng.installer.DeactivateBatch(ctx, tenant, modules, opts)
			printBatchResults(cmd, results)
			return err
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false,
		"skip the blocking-dependents check")
	cmd.Flags().StringVar(&backupPath, "backup", "",
		"write a zip backup of the module's files to this path before teardown")
	return cmd
}

func parseSetFlags(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	moduleConfig := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set entry %q, want key=value", pair)
		}
		moduleConfig[key] = value
	}
	return moduleConfig, nil
}

func printBatchResults(cmd *cobra.Command, results []installer.BatchResult) {
	for _, result := range results {
		if result.Outcome == installer.OutcomeFailed && result.Err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s: %v\n", result.Outcome, result.Module, result.Err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", result.Outcome, result.Module)
	}
}
