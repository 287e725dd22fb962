package common

import (
	"fmt"
	"strings"

	"jobscout/internal/search"
	"jobscout/internal/types"
	"jobscout/internal/utils"

	"github.com/spf13/viper"
)

// QueryFile is a saved search request, in json, yaml or toml
type QueryFile struct {
	Keywords string           `mapstructure:"keywords"`
	Location string           `mapstructure:"location"`
	Filters  QueryFileFilters `mapstructure:"filters"`
	Strategy string           `mapstructure:"strategy"`
	Params   map[string]any   `mapstructure:"params"`
}

// QueryFileFilters mirrors types.Filters
type QueryFileFilters struct {
	Recency         string   `mapstructure:"recency"`
	ExperienceLevel string   `mapstructure:"experience_level"`
	Remote          bool     `mapstructure:"remote"`
	Skills          []string `mapstructure:"skills"`
}

// ParseQueryFile decodes content, picking the syntax from the file extension.
func ParseQueryFile(filename, content string) (QueryFile, error) {
	format := strings.TrimPrefix(utils.GetFileExtension(filename), ".")
	switch format {
	case "yml":
		format = "yaml"
	case "json", "yaml", "toml":
	default:
		format = "json"
	}

	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(strings.NewReader(content)); err != nil {
		return QueryFile{}, fmt.Errorf("failed to parse query file %s: %w", filename, err)
	}

	var q QueryFile
	if err := v.Unmarshal(&q); err != nil {
		return QueryFile{}, fmt.Errorf("failed to decode query file %s: %w", filename, err)
	}
	return q, nil
}

// Request converts the file into a search request.
func (q QueryFile) Request() search.Request {
	return search.Request{
		Query: types.Query{
			Keywords: q.Keywords,
			Location: q.Location,
			Filters: types.Filters{
				Recency:         q.Filters.Recency,
				ExperienceLevel: q.Filters.ExperienceLevel,
				Remote:          q.Filters.Remote,
				Skills:          q.Filters.Skills,
			},
		},
		Strategy: types.Strategy(q.Strategy),
		Params:   q.Params,
	}
}
