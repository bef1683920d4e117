package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dikkadev/addonmgr/pkg/installer"
	"github.com/dikkadev/addonmgr/pkg/rules"
	"github.com/dikkadev/addonmgr/pkg/selector"
)

func rulesCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage update rules of installed add-ons",
	}

	cmd.AddCommand(rulesListCmd(opts))
	cmd.AddCommand(rulesAddCmd(opts))
	cmd.AddCommand(rulesRemoveCmd(opts))
	cmd.AddCommand(rulesClearCmd(opts))
	cmd.AddCommand(rulesEditCmd(opts))

	return cmd
}

func rulesListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list [owner/repo]",
		Short: "Show update rules",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				set := a.rules.Rules(args[0])
				if len(set) == 0 {
					fmt.Fprintf(out, "%s has no update rules\n", args[0])
					return nil
				}
				for _, rule := range set {
					fmt.Fprintln(out, rule)
				}
				return nil
			}

			snapshot := a.rules.Snapshot()
			if len(snapshot) == 0 {
				fmt.Fprintln(out, "No update rules set")
				return nil
			}

			ids := make([]string, 0, len(snapshot))
			for id := range snapshot {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Fprintf(out, "%s%s\n", id, formatRules(snapshot[id]))
			}
			return nil
		},
	}
}

func rulesAddCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add owner/repo rule...",
		Short: "Add update rules to an add-on",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := parseRules(args[1:])
			if err != nil {
				return err
			}

			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			addon, err := a.lookup(cmd, args[0])
			if err != nil {
				return err
			}

			for _, rule := range set {
				if err := a.rules.AddRule(cmd.Context(), a.store, addon.ID(), rule); err != nil {
					return fmt.Errorf("failed to add %s to %s: %w", rule, addon.ID(), err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", addon.ID(), formatRules(a.rules.Rules(addon.ID())))
			return nil
		},
	}
}

func rulesRemoveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove owner/repo rule...",
		Short: "Remove update rules from an add-on",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if _, _, err := installer.ParseID(id); err != nil {
				return err
			}
			set, err := parseRules(args[1:])
			if err != nil {
				return err
			}

			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, rule := range set {
				if err := a.rules.RemoveRule(cmd.Context(), a.store, id, rule); err != nil {
					if errors.Is(err, rules.ErrNotFound) {
						return fmt.Errorf("%s does not have the %s rule", id, rule)
					}
					return fmt.Errorf("failed to remove %s from %s: %w", rule, id, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", id, formatRules(a.rules.Rules(id)))
			return nil
		},
	}
}

func rulesClearCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear owner/repo",
		Short: "Remove every update rule of an add-on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if _, _, err := installer.ParseID(id); err != nil {
				return err
			}

			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.rules.RemoveAllRules(cmd.Context(), a.store, id); err != nil {
				if errors.Is(err, rules.ErrNotFound) {
					return fmt.Errorf("%s has no update rules", id)
				}
				return fmt.Errorf("failed to clear rules of %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared update rules of %s\n", id)
			return nil
		},
	}
}

func rulesEditCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "edit owner/repo",
		Short: "Pick the update rules of an add-on interactively",
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
			id := addon.ID()

			current := a.rules.Rules(id)
			chosen, err := selector.SelectRules(id, current)
			if errors.Is(err, selector.ErrCancelled) {
				fmt.Fprintln(cmd.OutOrStdout(), "No changes")
				return nil
			}
			if err != nil {
				return err
			}

			add, remove := selector.Diff(current, chosen)
			for _, rule := range remove {
				if err := a.rules.RemoveRule(cmd.Context(), a.store, id, rule); err != nil {
					return fmt.Errorf("failed to remove %s from %s: %w", rule, id, err)
				}
			}
			for _, rule := range add {
				if err := a.rules.AddRule(cmd.Context(), a.store, id, rule); err != nil {
					return fmt.Errorf("failed to add %s to %s: %w", rule, id, err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", id, formatRules(a.rules.Rules(id)))
			return nil
		},
	}
}
