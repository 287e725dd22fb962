package formatters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"jobscout/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "SearchResponse", &SearchTextFormatter{})
	registry.RegisterFormatter("markdown", "SearchResponse", &SearchMarkdownFormatter{})
	registry.RegisterFormatter("text", "SourceList", &SourcesTextFormatter{})
	registry.RegisterFormatter("markdown", "SourceList", &SourcesMarkdownFormatter{})
	registry.RegisterFormatter("text", "SourceInfo", &SourceTextFormatter{})
	registry.RegisterFormatter("markdown", "SourceInfo", &SourceMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	data = deref(data)
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

// deref lets callers pass either values or pointers of the known types.
func deref(data any) any {
	switch v := data.(type) {
	case *types.SearchResponse:
		if v != nil {
			return *v
		}
	case *types.SourceList:
		if v != nil {
			return *v
		}
	case *types.SourceInfo:
		if v != nil {
			return *v
		}
	}
	return data
}

func getDataType(data any) string {
	switch data.(type) {
	case types.SearchResponse:
		return "SearchResponse"
	case types.SourceList:
		return "SourceList"
	case types.SourceInfo:
		return "SourceInfo"
	default:
		return "any"
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData) + "\n", nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// SearchTextFormatter renders a search response for terminals
type SearchTextFormatter struct{}

func (stf *SearchTextFormatter) Format(data any) (string, error) {
	resp, ok := data.(types.SearchResponse)
	if !ok {
		return "", fmt.Errorf("expected SearchResponse, got %T", data)
	}

	var output strings.Builder

	output.WriteString("=== SEARCH ===\n")
	fmt.Fprintf(&output, "ID: %s\n", resp.SearchID)
	fmt.Fprintf(&output, "Time: %s\n", resp.Timestamp)
	fmt.Fprintf(&output, "Keywords: %s\n", resp.SearchCriteria.Keywords)
	if resp.SearchCriteria.Location != "" {
		fmt.Fprintf(&output, "Location: %s\n", resp.SearchCriteria.Location)
	}
	fmt.Fprintf(&output, "Strategy: %s (provider: %s)\n", resp.Strategy, resp.ProviderName)
	fmt.Fprintf(&output, "Jobs found: %d\n", resp.JobCount)

	if len(resp.PerProviderStatus) > 0 {
		output.WriteString("\n=== PROVIDERS ===\n")
		for _, st := range resp.PerProviderStatus {
			if st.Success {
				fmt.Fprintf(&output, "  %-12s ok     %d jobs\n", st.Name, st.JobCount)
			} else {
				fmt.Fprintf(&output, "  %-12s FAILED %s\n", st.Name, errorText(st.Error))
			}
		}
	}

	for i, job := range resp.Jobs {
		fmt.Fprintf(&output, "\n=== JOB %d ===\n", i+1)
		fmt.Fprintf(&output, "%s at %s\n", job.Title, job.Company)
		fmt.Fprintf(&output, "Location: %s\n", job.Location)
		fmt.Fprintf(&output, "Type: %s\n", job.JobType)
		fmt.Fprintf(&output, "Salary: %s\n", job.Salary)
		fmt.Fprintf(&output, "Posted: %s\n", job.DatePosted)
		fmt.Fprintf(&output, "Source: %s\n", job.Source)
		if len(job.Requirements) > 0 {
			fmt.Fprintf(&output, "Requirements: %s\n", strings.Join(job.Requirements, ", "))
		}
		if len(job.Benefits) > 0 {
			fmt.Fprintf(&output, "Benefits: %s\n", strings.Join(job.Benefits, ", "))
		}
		if job.Description != "" && job.Description != types.Unknown {
			output.WriteString("\n")
			output.WriteString(job.Description)
			output.WriteString("\n")
		}
		if job.ApplicationLink != "" && job.ApplicationLink != types.Unknown {
			fmt.Fprintf(&output, "Apply: %s\n", job.ApplicationLink)
		}
	}

	return output.String(), nil
}

func (stf *SearchTextFormatter) SupportedType() string {
	return "SearchResponse"
}

// SearchMarkdownFormatter renders a search response as a markdown report
type SearchMarkdownFormatter struct{}

func (smf *SearchMarkdownFormatter) Format(data any) (string, error) {
	resp, ok := data.(types.SearchResponse)
	if !ok {
		return "", fmt.Errorf("expected SearchResponse, got %T", data)
	}

	var output strings.Builder

	fmt.Fprintf(&output, "# Jobs for \"%s\"\n\n", resp.SearchCriteria.Keywords)
	fmt.Fprintf(&output, "- **Search ID:** %s\n", resp.SearchID)
	fmt.Fprintf(&output, "- **Time:** %s\n", resp.Timestamp)
	if resp.SearchCriteria.Location != "" {
		fmt.Fprintf(&output, "- **Location:** %s\n", resp.SearchCriteria.Location)
	}
	fmt.Fprintf(&output, "- **Strategy:** %s\n", resp.Strategy)
	fmt.Fprintf(&output, "- **Provider:** %s\n", resp.ProviderName)
	fmt.Fprintf(&output, "- **Jobs found:** %d\n", resp.JobCount)

	if len(resp.PerProviderStatus) > 0 {
		output.WriteString("\n## Providers\n\n")
		output.WriteString("| Provider | Status | Jobs | Error |\n")
		output.WriteString("|---|---|---|---|\n")
		for _, st := range resp.PerProviderStatus {
			status := "ok"
			if !st.Success {
				status = "failed"
			}
			fmt.Fprintf(&output, "| %s | %s | %d | %s |\n", st.Name, status, st.JobCount, errorText(st.Error))
		}
	}

	for _, job := range resp.Jobs {
		fmt.Fprintf(&output, "\n## %s\n\n", job.Title)
		fmt.Fprintf(&output, "**%s** · %s · %s\n\n", job.Company, job.Location, job.JobType)
		fmt.Fprintf(&output, "- **Salary:** %s\n", job.Salary)
		fmt.Fprintf(&output, "- **Posted:** %s\n", job.DatePosted)
		fmt.Fprintf(&output, "- **Source:** %s\n", job.Source)
		if job.ApplicationLink != "" && job.ApplicationLink != types.Unknown {
			fmt.Fprintf(&output, "- **Apply:** [%s](%s)\n", job.ApplicationLink, job.ApplicationLink)
		}
		if job.Description != "" && job.Description != types.Unknown {
			output.WriteString("\n")
			output.WriteString(job.Description)
			output.WriteString("\n")
		}
		writeMarkdownList(&output, "Requirements", job.Requirements)
		writeMarkdownList(&output, "Benefits", job.Benefits)
	}

	return output.String(), nil
}

func (smf *SearchMarkdownFormatter) SupportedType() string {
	return "SearchResponse"
}

// SourcesTextFormatter renders the registry listing as a table
type SourcesTextFormatter struct{}

func (stf *SourcesTextFormatter) Format(data any) (string, error) {
	list, ok := data.(types.SourceList)
	if !ok {
		return "", fmt.Errorf("expected SourceList, got %T", data)
	}
	if len(list.Sources) == 0 {
		return "No job sources registered.\n", nil
	}

	var output strings.Builder
	fmt.Fprintf(&output, "%-14s %-8s %8s %6s  %s\n", "NAME", "STATE", "PRIORITY", "WEIGHT", "IMPLEMENTATION")
	for _, src := range list.Sources {
		fmt.Fprintf(&output, "%-14s %-8s %8d %6d  %s.%s\n",
			src.Name, stateLabel(src.Enabled), src.Priority, src.Weight, src.Module, src.Class)
	}
	return output.String(), nil
}

func (stf *SourcesTextFormatter) SupportedType() string {
	return "SourceList"
}

// SourcesMarkdownFormatter renders the registry listing as a markdown table
type SourcesMarkdownFormatter struct{}

func (smf *SourcesMarkdownFormatter) Format(data any) (string, error) {
	list, ok := data.(types.SourceList)
	if !ok {
		return "", fmt.Errorf("expected SourceList, got %T", data)
	}

	var output strings.Builder
	output.WriteString("# Job Sources\n\n")
	output.WriteString("| Name | State | Priority | Weight | Implementation |\n")
	output.WriteString("|---|---|---|---|---|\n")
	for _, src := range list.Sources {
		fmt.Fprintf(&output, "| %s | %s | %d | %d | `%s.%s` |\n",
			src.Name, stateLabel(src.Enabled), src.Priority, src.Weight, src.Module, src.Class)
	}
	return output.String(), nil
}

func (smf *SourcesMarkdownFormatter) SupportedType() string {
	return "SourceList"
}

// SourceTextFormatter renders one source with its config
type SourceTextFormatter struct{}

func (stf *SourceTextFormatter) Format(data any) (string, error) {
	src, ok := data.(types.SourceInfo)
	if !ok {
		return "", fmt.Errorf("expected SourceInfo, got %T", data)
	}

	var output strings.Builder
	fmt.Fprintf(&output, "Name: %s\n", src.Name)
	fmt.Fprintf(&output, "Implementation: %s.%s\n", src.Module, src.Class)
	fmt.Fprintf(&output, "State: %s\n", stateLabel(src.Enabled))
	fmt.Fprintf(&output, "Priority: %d\n", src.Priority)
	fmt.Fprintf(&output, "Weight: %d\n", src.Weight)
	output.WriteString("Config:\n")
	if len(src.Config) == 0 {
		output.WriteString("  (none)\n")
	}
	for _, key := range sortedKeys(src.Config) {
		fmt.Fprintf(&output, "  %s: %v\n", key, src.Config[key])
	}
	return output.String(), nil
}

func (stf *SourceTextFormatter) SupportedType() string {
	return "SourceInfo"
}

// SourceMarkdownFormatter renders one source as markdown
type SourceMarkdownFormatter struct{}

func (smf *SourceMarkdownFormatter) Format(data any) (string, error) {
	src, ok := data.(types.SourceInfo)
	if !ok {
		return "", fmt.Errorf("expected SourceInfo, got %T", data)
	}

	var output strings.Builder
	fmt.Fprintf(&output, "# %s\n\n", src.Name)
	fmt.Fprintf(&output, "- **Implementation:** `%s.%s`\n", src.Module, src.Class)
	fmt.Fprintf(&output, "- **State:** %s\n", stateLabel(src.Enabled))
	fmt.Fprintf(&output, "- **Priority:** %d\n", src.Priority)
	fmt.Fprintf(&output, "- **Weight:** %d\n", src.Weight)
	if len(src.Config) > 0 {
		output.WriteString("\n## Config\n\n")
		for _, key := range sortedKeys(src.Config) {
			fmt.Fprintf(&output, "- `%s`: %v\n", key, src.Config[key])
		}
	}
	return output.String(), nil
}

func (smf *SourceMarkdownFormatter) SupportedType() string {
	return "SourceInfo"
}

func writeMarkdownList(output *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(output, "\n### %s\n\n", heading)
	for _, item := range items {
		fmt.Fprintf(output, "- %s\n", item)
	}
}

func errorText(info *types.ErrorInfo) string {
	if info == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", info.Kind, info.Message)
}

func stateLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Global formatter registry
var GlobalRegistry = NewFormatterRegistry()
