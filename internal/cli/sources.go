package cli

import (
	"fmt"
	"strconv"
	"strings"

	"jobscout/internal/common"
	"jobscout/internal/config"
	"jobscout/internal/errors"
	"jobscout/internal/provider"
	"jobscout/internal/registry"
	"jobscout/internal/types"

	"github.com/spf13/cobra"
)

var (
	sourcesConfig   common.CommandConfig
	sourcesSnapshot string
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect and manage registered job sources",
	Long: `Inspect and manage the job source registry.

The registry starts from the sources in the config file. When a snapshot
exists (registry.snapshotPath or --snapshot) it replaces them, and every
change made here is written back to it. A running server with
registry.watch.enabled picks the changes up.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		if sourcesConfig.OutputFormat == "" {
			sourcesConfig.OutputFormat = cfg.App.DefaultFormat
		}
		return common.ValidateOutputFormat(sourcesConfig.OutputFormat, cfg.App.SupportedFormats)
	},
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List job sources in selection order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry(cmd)
		if err != nil {
			return err
		}
		return common.NewOutputHandler(getLoggerFromContext(cmd.Context())).
			HandleOutput(types.SourceList{Sources: reg.InfoAll()}, sourcesConfig)
	},
}

var sourcesShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Show one job source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry(cmd)
		if err != nil {
			return err
		}
		info, err := reg.Info(args[0])
		if err != nil {
			return err
		}
		return common.NewOutputHandler(getLoggerFromContext(cmd.Context())).HandleOutput(info, sourcesConfig)
	},
}

var sourcesEnableCmd = &cobra.Command{
	Use:   "enable NAME",
	Short: "Enable a job source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateSources(cmd, "enabled", args[0], func(r *registry.Registry) error {
			return r.Enable(args[0])
		})
	},
}

var sourcesDisableCmd = &cobra.Command{
	Use:   "disable NAME",
	Short: "Disable a job source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateSources(cmd, "disabled", args[0], func(r *registry.Registry) error {
			return r.Disable(args[0])
		})
	},
}

var sourcesRemoveCmd = &cobra.Command{
	Use:     "remove NAME",
	Aliases: []string{"rm"},
	Short:   "Remove a job source",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateSources(cmd, "removed", args[0], func(r *registry.Registry) error {
			return r.Deregister(args[0])
		})
	},
}

var sourcesPriorityCmd = &cobra.Command{
	Use:   "priority NAME VALUE",
	Short: "Set a job source's priority (higher is preferred)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := parseIntArg("priority", args[1])
		if err != nil {
			return err
		}
		return mutateSources(cmd, "priority updated", args[0], func(r *registry.Registry) error {
			return r.SetPriority(args[0], value)
		})
	},
}

var sourcesWeightCmd = &cobra.Command{
	Use:   "weight NAME VALUE",
	Short: "Set a job source's load balancing weight",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := parseIntArg("weight", args[1])
		if err != nil {
			return err
		}
		return mutateSources(cmd, "weight updated", args[0], func(r *registry.Registry) error {
			return r.SetWeight(args[0], value)
		})
	},
}

var sourcesConfigCmd = &cobra.Command{
	Use:   "config NAME KEY=VALUE...",
	Short: "Merge settings into a job source's config",
	Long: `Merge settings into a job source's config. Values are read as JSON when
they parse (5, true, "x", [1,2]) and as plain strings otherwise.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		partial, err := parseConfigPairs(args[1:])
		if err != nil {
			return err
		}
		return mutateSources(cmd, "config updated", args[0], func(r *registry.Registry) error {
			return r.UpdateConfig(args[0], partial)
		})
	},
}

var sourcesSaveCmd = &cobra.Command{
	Use:   "save [PATH]",
	Short: "Write the current registry to a snapshot file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry(cmd)
		if err != nil {
			return err
		}
		path := snapshotPathFor(cmd)
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return errors.NewValidationError(errors.ErrCodeInvalidRequest, "no snapshot path given or configured", nil)
		}
		if err := reg.SaveConfig(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registry saved to %s\n", path)
		return nil
	},
}

var sourcesLoadCmd = &cobra.Command{
	Use:   "load PATH",
	Short: "Validate a snapshot file and make it the working snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := snapshotPathFor(cmd)
		if target == "" {
			return errors.NewValidationError(errors.ErrCodeInvalidRequest, "no snapshot path configured to load into", nil)
		}
		reg, err := openRegistry(cmd)
		if err != nil {
			return err
		}
		if err := reg.LoadConfig(args[0]); err != nil {
			return err
		}
		if err := reg.SaveConfig(target); err != nil {
			return err
		}
		total, enabled := reg.Len()
		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d job sources (%d enabled) from %s into %s\n", total, enabled, args[0], target)
		return nil
	},
}

func init() {
	sourcesCmd.PersistentFlags().StringVar(&sourcesSnapshot, "snapshot", "", "Registry snapshot path (default from config)")
	sourcesCmd.PersistentFlags().StringVarP(&sourcesConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	sourcesCmd.PersistentFlags().StringVar(&sourcesConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")

	sourcesCmd.AddCommand(sourcesListCmd, sourcesShowCmd, sourcesEnableCmd, sourcesDisableCmd,
		sourcesRemoveCmd, sourcesPriorityCmd, sourcesWeightCmd, sourcesConfigCmd,
		sourcesSaveCmd, sourcesLoadCmd)
}

func snapshotPathFor(cmd *cobra.Command) string {
	if sourcesSnapshot != "" {
		return sourcesSnapshot
	}
	return getConfigFromContext(cmd.Context()).Registry.SnapshotPath
}

// openRegistry builds the registry from config, replaced by the snapshot when
// it exists.
func openRegistry(cmd *cobra.Command) (*registry.Registry, error) {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())
	return loadRegistry(cfg, snapshotPathFor(cmd), logger)
}

func loadRegistry(cfg *config.Config, snapshot string, logger *errors.Logger) (*registry.Registry, error) {
	c := *cfg
	c.Registry.SnapshotPath = snapshot
	c.Registry.LoadOnStart = snapshot != ""
	reg, err := registry.Bootstrap(&c, provider.DepsFromConfig(cfg, logger), registry.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build job source registry: %w", err)
	}
	return reg, nil
}

func mutateSources(cmd *cobra.Command, action, name string, fn func(*registry.Registry) error) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())
	if err := applySnapshotMutation(cfg, snapshotPathFor(cmd), logger, fn); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Job source '%s' %s\n", registry.NormalizeName(name), action)
	return nil
}

// applySnapshotMutation loads the registry, applies fn and writes the result
// back. Nothing is written when fn fails.
func applySnapshotMutation(cfg *config.Config, snapshot string, logger *errors.Logger, fn func(*registry.Registry) error) error {
	if snapshot == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"changes need a snapshot: set registry.snapshotPath or pass --snapshot", nil)
	}
	reg, err := loadRegistry(cfg, snapshot, logger)
	if err != nil {
		return err
	}
	if err := fn(reg); err != nil {
		return err
	}
	return reg.SaveConfig(snapshot)
}

func parseIntArg(field, value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, errors.InvalidValue(field, value)
	}
	return n, nil
}

func parseConfigPairs(pairs []string) (map[string]any, error) {
	partial := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("expected KEY=VALUE, got %q", pair), nil)
		}
		partial[key] = parseValue(value)
	}
	return partial, nil
}
