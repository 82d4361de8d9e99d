package options

import (
	"os"
	"strings"

	"github.com/spf13/pflag"
)

// SearchOptions configures the external web search gateway.
type SearchOptions struct {
	Enabled    bool   `json:"enabled"     mapstructure:"enabled"`
	APIKey     string `json:"api-key"     mapstructure:"api-key"`
	BaseURL    string `json:"base-url"    mapstructure:"base-url"`
	MaxResults int    `json:"max-results" mapstructure:"max-results"`
	Country    string `json:"country"     mapstructure:"country"`
	Lang       string `json:"lang"        mapstructure:"lang"`
}

// NewSearchOptions returns defaults.
func NewSearchOptions() *SearchOptions {
	return &SearchOptions{
		Enabled:    true,
		APIKey:     "${BRAVE_API_KEY}",
		BaseURL:    "https://api.search.brave.com/res/v1/web/search",
		MaxResults: 5,
		Country:    "US",
		Lang:       "en",
	}
}

// ResolveAPIKey expands a ${VAR} placeholder against the environment.
func (o *SearchOptions) ResolveAPIKey() string {
	key := o.APIKey
	if strings.HasPrefix(key, "${") && strings.HasSuffix(key, "}") {
		return os.Getenv(strings.TrimSuffix(strings.TrimPrefix(key, "${"), "}"))
	}
	return key
}

// Validate checks the option values.
func (o *SearchOptions) Validate() []error {
	return nil
}

// AddFlags registers the flags for this group.
func (o *SearchOptions) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Enabled, "search.enabled", o.Enabled,
		"Enable the web search gateway.")
	fs.StringVar(&o.APIKey, "search.api-key", o.APIKey,
		"Search API key, or a ${ENV_VAR} placeholder resolved at startup.")
	fs.StringVar(&o.BaseURL, "search.base-url", o.BaseURL,
		"Search API endpoint.")
	fs.IntVar(&o.MaxResults, "search.max-results", o.MaxResults,
		"Maximum results requested per search.")
	fs.StringVar(&o.Country, "search.country", o.Country,
		"Country code for search results.")
	fs.StringVar(&o.Lang, "search.lang", o.Lang,
		"Language code for search results.")
}
