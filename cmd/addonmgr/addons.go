package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dikkadev/addonmgr/pkg/installer"
	"github.com/dikkadev/addonmgr/pkg/rules"
)

func installCmd(opts *globalOptions) *cobra.Command {
	var (
		ruleNames []string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "install owner/repo",
		Short: "Install an add-on from its latest GitHub release",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := parseRules(ruleNames)
			if err != nil {
				return err
			}

			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.installer.Install(cmd.Context(), args[0], installer.Options{Rules: set, DryRun: dryRun})
		},
	}

	cmd.Flags().StringSliceVar(&ruleNames, "rule", nil, "Update rule to set after installing (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without making changes")

	return cmd
}

func updateCmd(opts *globalOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "update [owner/repo...]",
		Short: "Update installed add-ons",
		Long: `Update installed add-ons to the newest release their update rules allow.

Without arguments every add-on is updated, except those with the
disable-auto-update or pin-version rule. Naming an add-on updates it even
when auto-update is disabled; pin-version still blocks it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			updateOpts := installer.Options{DryRun: dryRun}
			if len(args) == 0 {
				return a.installer.UpdateAll(cmd.Context(), updateOpts)
			}

			for _, id := range args {
				addon, err := a.lookup(cmd, id)
				if err != nil {
					return err
				}
				if err := a.installer.Update(cmd.Context(), addon, updateOpts); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without making changes")

	return cmd
}

func removeCmd(opts *globalOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "remove owner/repo",
		Short: "Remove an installed add-on and its update rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			addon, err := a.lookup(cmd, args[0])
			if err != nil {
				return err
			}
			return a.installer.Remove(cmd.Context(), addon, installer.Options{DryRun: dryRun})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without making changes")

	return cmd
}

func listCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed add-ons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			addons, err := a.store.ListAddons(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list add-ons: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(addons) == 0 {
				fmt.Fprintln(out, "No add-ons installed")
				return nil
			}

			fmt.Fprintln(out, "Installed add-ons:")
			for _, addon := range addons {
				fmt.Fprintf(out, "  %s@%s%s\n", addon.ID(), addon.Version, formatRules(a.rules.Rules(addon.ID())))
			}
			return nil
		},
	}
}

func parseRules(names []string) ([]rules.UpdateRule, error) {
	var set []rules.UpdateRule
	for _, name := range names {
		rule, err := rules.ParseRule(name)
		if err != nil {
			return nil, err
		}
		set = append(set, rule)
	}
	return set, nil
}

// formatRules renders a rule set as " (a, b)", or "" when empty
func formatRules(set []rules.UpdateRule) string {
	if len(set) == 0 {
		return ""
	}
	names := make([]string, len(set))
	for i, rule := range set {
		names[i] = rule.String()
	}
	return " (" + strings.Join(names, ", ") + ")"
}
