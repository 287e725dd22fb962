package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"jobscout/internal/errors"
	"jobscout/internal/types"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// PerplexityRef identifies the Perplexity-backed provider
var PerplexityRef = Ref{Module: "provider/perplexity", Class: "PerplexityProvider"}

const (
	perplexitySource       = "perplexity"
	perplexityDefaultModel = "sonar-pro"
	perplexitySystemPrompt = "You are a helpful job search assistant that provides detailed information about job listings."
	perplexityInstruction  = "Provide a list of at least 5 relevant job postings with company name, job title, location, " +
		"key requirements, and application link if available. Format the jobs as a numbered list with clear sections."
)

func init() {
	Register(PerplexityRef, func(deps Deps) (Provider, error) {
		return NewPerplexityProvider(deps), nil
	})
}

// PerplexityProvider asks Perplexity's chat completions API for listings and
// parses the prose answer.
type PerplexityProvider struct {
	client openai.Client
	hasKey bool
	*remoteCaller
}

var _ Provider = (*PerplexityProvider)(nil)
var _ HealthReporter = (*PerplexityProvider)(nil)

// NewPerplexityProvider builds a provider from the configured credentials. A
// missing API key is reported on each search, not here, so snapshots that
// mention perplexity still load.
func NewPerplexityProvider(deps Deps) *PerplexityProvider {
	baseURL := deps.Credentials.Perplexity.BaseURL
	if baseURL == "" {
		baseURL = "https://api.perplexity.ai"
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	}
	if deps.Credentials.Perplexity.APIKey != "" {
		opts = append(opts, option.WithAPIKey(deps.Credentials.Perplexity.APIKey))
	}
	if deps.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(deps.HTTPClient))
	}

	return &PerplexityProvider{
		client:       openai.NewClient(opts...),
		hasKey:       deps.Credentials.Perplexity.APIKey != "",
		remoteCaller: newRemoteCaller(perplexitySource, deps),
	}
}

func (p *PerplexityProvider) Ref() Ref { return PerplexityRef }

// SearchJobs implements Provider
func (p *PerplexityProvider) SearchJobs(ctx context.Context, query types.Query, params Params) (types.RawResult, error) {
	if strings.TrimSpace(query.Keywords) == "" {
		return types.RawResult{}, errors.InvalidQuery("keywords are required").WithContext("provider", perplexitySource)
	}
	if !p.hasKey {
		return types.RawResult{}, errors.ProviderUnavailable(perplexitySource,
			errors.NewConfigError(errors.ErrCodeMissingAPIKey, "perplexity API key is not configured", nil))
	}

	model := params.String(ParamModel, perplexityDefaultModel)
	system, user := buildPerplexityPrompts(query)

	return p.call(ctx, "search_jobs", params, func(ctx context.Context) ([]byte, error) {
		completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: model,
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(user),
			},
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(completionEnvelope(completion))
	})
}

// buildPerplexityPrompts turns a query into the system and user messages.
func buildPerplexityPrompts(query types.Query) (system, user string) {
	system = perplexitySystemPrompt
	if isRecency(query.Filters.Recency) {
		system += fmt.Sprintf(" Focus on jobs posted within the last %s.", query.Filters.Recency)
	}

	parts := []string{"job openings for " + strings.TrimSpace(query.Keywords)}
	if query.Location != "" {
		parts = append(parts, "in "+query.Location)
	}
	if query.Filters.Remote {
		parts = append(parts, "remote work only")
	}
	if query.Filters.ExperienceLevel != "" {
		parts = append(parts, query.Filters.ExperienceLevel+" level")
	}
	if len(query.Filters.Skills) > 0 {
		parts = append(parts, "requiring "+strings.Join(query.Filters.Skills, ", "))
	}
	parts = append(parts, perplexityInstruction)

	return system, strings.Join(parts, " ")
}

func isRecency(v string) bool {
	switch v {
	case types.RecencyMonth, types.RecencyWeek, types.RecencyDay, types.RecencyHour:
		return true
	}
	return false
}

// chatBody is the RawResult body layout for chat-completion backends
type chatBody struct {
	Model   string        `json:"model"`
	Choices *[]chatChoice `json:"choices"`
	Usage   *chatUsage    `json:"usage,omitempty"`
}

type chatChoice struct {
	Message *chatMessage `json:"message"`
}

type chatMessage struct {
	Content *string `json:"content"`
}

type chatUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

func completionEnvelope(c *openai.ChatCompletion) chatBody {
	choices := make([]chatChoice, 0, len(c.Choices))
	for _, choice := range c.Choices {
		content := choice.Message.Content
		choices = append(choices, chatChoice{Message: &chatMessage{Content: &content}})
	}
	return chatBody{
		Model:   c.Model,
		Choices: &choices,
		Usage: &chatUsage{
			PromptTokens:     c.Usage.PromptTokens,
			CompletionTokens: c.Usage.CompletionTokens,
			TotalTokens:      c.Usage.TotalTokens,
		},
	}
}

// ParseResults implements Provider
func (p *PerplexityProvider) ParseResults(raw types.RawResult) ([]types.RawJob, error) {
	return parseChatBody(perplexitySource, raw.Body)
}

// parseChatBody validates the envelope and parses every choice's content.
func parseChatBody(source string, body []byte) ([]types.RawJob, error) {
	var envelope chatBody
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.ParseError(source, "body", err)
	}
	if envelope.Choices == nil {
		return nil, errors.ParseError(source, "choices", nil)
	}

	jobs := []types.RawJob{}
	for i, choice := range *envelope.Choices {
		if choice.Message == nil || choice.Message.Content == nil {
			return nil, errors.ParseError(source, fmt.Sprintf("choices[%d].message.content", i), nil)
		}
		for _, section := range splitListings(*choice.Message.Content) {
			if job, ok := parseListing(section); ok {
				jobs = append(jobs, job)
			}
		}
	}
	return jobs, nil
}

// NormalizeJob implements Provider
func (p *PerplexityProvider) NormalizeJob(job types.RawJob) types.NormalizedJob {
	return normalize(perplexitySource, job)
}
