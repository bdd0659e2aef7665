// Package category maps abstract category tokens onto upstream query parameters.
package category

import (
	"net/url"
	"sort"
	"strings"

	"github.com/headline-dev/headline/pkg/config"
)

// Query holds the upstream parameters derived from a (category, country) request.
// Empty fields are omitted from the upstream call.
type Query struct {
	Category string
	Country  string
}

// Values returns the URL parameters the news API expects.
func (q Query) Values(apiKey, language string) url.Values {
	v := url.Values{}
	v.Set("apikey", apiKey)
	v.Set("language", language)
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Country != "" {
		v.Set("country", q.Country)
	}
	return v
}

// Normalizer resolves category tokens using the configured table.
type Normalizer struct {
	mapping        map[string]string
	fallback       string
	region         string
	defaultCountry string
}

// New creates a Normalizer from the given configuration.
func New(cfg config.CategoriesConfig) *Normalizer {
	mapping := make(map[string]string, len(cfg.Mapping))
	for k, v := range cfg.Mapping {
		mapping[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &Normalizer{
		mapping:        mapping,
		fallback:       cfg.Default,
		region:         strings.ToLower(cfg.Region),
		defaultCountry: cfg.DefaultCountry,
	}
}

// Normalize returns the upstream query for a category and optional country.
//
// The region token is country-scoped: it carries no category and always has a
// country, falling back to the configured default. Every other category is
// topic-scoped and only filtered by country when the caller asks for one.
// Unknown categories resolve to the fallback token instead of failing.
func (n *Normalizer) Normalize(category, country string) Query {
	cat := strings.ToLower(strings.TrimSpace(category))
	country = strings.ToLower(strings.TrimSpace(country))

	if cat == n.region {
		if country == "" {
			country = n.defaultCountry
		}
		return Query{Country: country}
	}

	token, ok := n.mapping[cat]
	if !ok {
		token = n.fallback
	}
	return Query{Category: token, Country: country}
}

// IsRegion reports whether category selects country-scoped content.
func (n *Normalizer) IsRegion(category string) bool {
	return strings.ToLower(strings.TrimSpace(category)) == n.region
}

// Categories lists the recognized category tokens, region first.
func (n *Normalizer) Categories() []string {
	out := make([]string, 0, len(n.mapping)+1)
	for k := range n.mapping {
		out = append(out, k)
	}
	sort.Strings(out)
	return append([]string{n.region}, out...)
}
