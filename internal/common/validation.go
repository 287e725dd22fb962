package common

import (
	"fmt"
	"slices"
	"strings"

	"jobscout/internal/types"
)

// ValidateOutputFormat validates format against configured supported formats
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 {
		return nil // No restrictions configured
	}

	if slices.Contains(supportedFormats, format) {
		return nil
	}

	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}

// GetSupportedFormats returns the list of supported formats
func GetSupportedFormats(supportedFormats []string) []string {
	return supportedFormats
}

// ValidateStrategy accepts an empty strategy (use the default) or a known one.
func ValidateStrategy(strategy string) error {
	s := types.Strategy(strings.ToLower(strings.TrimSpace(strategy)))
	if s == "" || s.Valid() {
		return nil
	}
	return fmt.Errorf("unsupported strategy '%s'. Supported strategies: [%s %s %s]",
		strategy, types.StrategyPrimary, types.StrategyLoadBalance, types.StrategyAll)
}

// StrategyNames lists the strategies for shell completion
func StrategyNames() []string {
	return []string{string(types.StrategyPrimary), string(types.StrategyLoadBalance), string(types.StrategyAll)}
}
