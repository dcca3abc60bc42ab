package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/saasforge/modlife"
)

// NewModulesCommand creates the modules listing command.
func NewModulesCommand() *cobra.Command {
	var tenant string

	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List catalog modules",
		Long: `List every module in the catalog. With --tenant, each row also shows
whether the module is active for that tenant.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, err := buildEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.Close(ctx)

			descriptors, err := eng.catalog.ListModules(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if tenant != "" {
				fmt.Fprintln(w, "NAME\tVERSION\tDEPENDENCIES\tSYSTEM\tACTIVE")
			} else {
				fmt.Fprintln(w, "NAME\tVERSION\tDEPENDENCIES\tSYSTEM")
			}
			for _, descriptor := range descriptors {
				deps := strings.Join(descriptor.Dependencies, ",")
				if deps == "" {
					deps = "-"
				}
				if tenant != "" {
					active, err := eng.states.IsActive(ctx, modlife.TenantID(tenant), descriptor.Name)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%v\n",
						descriptor.Name, descriptor.Version, deps, descriptor.IsSystem, active)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\n",
					descriptor.Name, descriptor.Version, deps, descriptor.IsSystem)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&tenant, "tenant", "t", "",
		"show per-module active state for this tenant")
	return cmd
}

// NewImpactCommand creates the deactivation impact preview command.
func NewImpactCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "impact <tenant> <module>",
		Short: "Preview what deactivating a module would affect",
		Long: `Report the dependent modules that would block a deactivation and the
storage footprint the deactivation would remove, without changing
anything.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, err := buildEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.Close(ctx)

			impact, err := eng.installer.DeactivationImpact(ctx, modlife.TenantID(args[0]), args[1])
			if err != nil {
				return err
			}
			payload, err := json.MarshalIndent(impact, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return nil
		},
	}
	return cmd
}
