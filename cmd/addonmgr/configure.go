package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dikkadev/addonmgr/pkg/config"
)

func configureCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Show or change addonmgr settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, opts, "show", "")
		},
	})

	set := &cobra.Command{
		Use:   "set setting value",
		Short: "Change a setting",
		Long:  "Change a setting. Available settings:\n" + settingsHelp(),
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := ""
			if len(args) == 2 {
				value = args[1]
			}
			return runOperation(cmd, opts, args[0], value)
		},
	}
	cmd.AddCommand(set)

	return cmd
}

func settingsHelp() string {
	var help string
	for _, op := range config.GetOperations() {
		if op.NeedsValue {
			help += fmt.Sprintf("  %-12s %s\n", op.Name, op.Description)
		}
	}
	return help
}

func runOperation(cmd *cobra.Command, opts *globalOptions, name, value string) error {
	op, err := config.FindOperation(name)
	if err != nil {
		return err
	}

	// Settings that are saved start from the file alone; environment
	// overrides only apply to what is shown
	load := func() (*config.Config, error) { return config.LoadWithEnvFile(opts.envFile) }
	if op.NeedsValue {
		load = config.LoadPersisted
	}
	cfg, err := load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	return op.Handler(cfg, cmd.OutOrStdout(), value)
}
