package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"jobscout/internal/common"
	"jobscout/internal/search"
	"jobscout/internal/types"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [keywords...]",
	Short: "Search for jobs through the registered job sources",
	Long: `Search for jobs using the configured job sources.

Keywords are taken from the arguments. A saved query can be given with
--query-file (json, yaml or toml); flags and arguments override its fields.
The strategy decides which sources answer: primary (highest priority),
load_balance (weighted random) or all (every enabled source).`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		if searchConfig.OutputFormat == "" {
			searchConfig.OutputFormat = cfg.App.DefaultFormat
		}
		if err := common.ValidateStrategy(searchFlags.strategy); err != nil {
			return err
		}
		return common.ValidateOutputFormat(searchConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runSearch,
}

// searchOptions holds the query flags of the search command
type searchOptions struct {
	location  string
	remote    bool
	recency   string
	level     string
	skills    []string
	strategy  string
	params    map[string]string
	queryFile string
	snapshot  string
}

var (
	searchConfig common.CommandConfig
	searchFlags  searchOptions
)

func init() {
	registerSearchFlags(searchCmd, &searchFlags)
	searchCmd.Flags().StringVarP(&searchConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	searchCmd.Flags().StringVar(&searchConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")

	_ = searchCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return common.GetSupportedFormats(cfg.App.SupportedFormats), cobra.ShellCompDirectiveNoFileComp
	})
	_ = searchCmd.RegisterFlagCompletionFunc("strategy", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return common.StrategyNames(), cobra.ShellCompDirectiveNoFileComp
	})
}

func registerSearchFlags(cmd *cobra.Command, opts *searchOptions) {
	flags := cmd.Flags()
	flags.StringVarP(&opts.location, "location", "l", "", "Job location")
	flags.BoolVar(&opts.remote, "remote", false, "Only remote positions")
	flags.StringVar(&opts.recency, "recency", "", "Posting age: month, week, day or hour")
	flags.StringVar(&opts.level, "level", "", "Experience level: entry, mid or senior")
	flags.StringSliceVar(&opts.skills, "skills", nil, "Required skills (comma separated)")
	flags.StringVarP(&opts.strategy, "strategy", "s", "", "Distribution strategy: primary, load_balance or all")
	flags.StringToStringVar(&opts.params, "param", nil, "Per-call provider parameter, key=value (repeatable)")
	flags.StringVarP(&opts.queryFile, "query-file", "q", "", "Saved query file (json, yaml or toml)")
	flags.StringVar(&opts.snapshot, "snapshot", "", "Registry snapshot to search with (default from config)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	snapshot := searchFlags.snapshot
	if snapshot == "" {
		snapshot = cfg.Registry.SnapshotPath
	}
	// CLI searches see the state a server or "sources" command saved
	reg, err := loadRegistry(cfg, snapshot, logger)
	if err != nil {
		return err
	}
	svc := search.NewService(reg,
		search.WithDefaultStrategy(types.Strategy(cfg.Registry.DefaultStrategy)),
		search.WithLogger(logger))

	var files []string
	if searchFlags.queryFile != "" {
		files = []string{searchFlags.queryFile}
	}

	createInput := func(contents []string) (search.Request, error) {
		var base common.QueryFile
		if len(contents) == 1 {
			parsed, err := common.ParseQueryFile(searchFlags.queryFile, contents[0])
			if err != nil {
				return search.Request{}, err
			}
			base = parsed
		}
		return buildSearchRequest(cmd, base, args, searchFlags), nil
	}

	logDetails := func(req search.Request, cfg common.CommandConfig) {
		logger.Info("Starting job search",
			"keywords", req.Query.Keywords,
			"location", req.Query.Location,
			"strategy", req.Strategy,
			"output_format", cfg.OutputFormat)
	}

	operation := func(ctx context.Context, req search.Request) (*types.SearchResponse, error) {
		return svc.Search(ctx, req)
	}

	if err := common.RunCommand(cmd.Context(), logger, searchConfig, files, createInput, operation, logDetails); err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return nil
}

// buildSearchRequest layers arguments and explicitly set flags over base.
func buildSearchRequest(cmd *cobra.Command, base common.QueryFile, args []string, opts searchOptions) search.Request {
	req := base.Request()
	flags := cmd.Flags()

	if len(args) > 0 {
		req.Query.Keywords = strings.Join(args, " ")
	}
	if flags.Changed("location") {
		req.Query.Location = opts.location
	}
	if flags.Changed("remote") {
		req.Query.Filters.Remote = opts.remote
	}
	if flags.Changed("recency") {
		req.Query.Filters.Recency = opts.recency
	}
	if flags.Changed("level") {
		req.Query.Filters.ExperienceLevel = opts.level
	}
	if flags.Changed("skills") {
		req.Query.Filters.Skills = opts.skills
	}
	if flags.Changed("strategy") {
		req.Strategy = types.Strategy(opts.strategy)
	}
	if len(opts.params) > 0 {
		if req.Params == nil {
			req.Params = make(map[string]any, len(opts.params))
		}
		for k, v := range opts.params {
			req.Params[k] = parseValue(v)
		}
	}
	return req
}

// parseValue reads v as JSON when it is valid JSON and as a string otherwise,
// so "5" becomes a number and "sonar" stays text.
func parseValue(v string) any {
	var decoded any
	if err := json.Unmarshal([]byte(v), &decoded); err == nil {
		return decoded
	}
	return v
}
