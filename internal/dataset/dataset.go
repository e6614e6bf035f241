// internal/dataset/dataset.go

// Package dataset loads the static query catalogue driving the suite: query
// strings by language and intent, UI smoke messages, and security payloads
// with their expected post-conditions. The file is read-only and cached for
// the lifetime of the process.
package dataset

import (
	"fmt"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Query is a single probe question with its expected response envelope.
type Query struct {
	Prompt           string `json:"prompt"`
	Intent           string `json:"intent,omitempty"`
	MinLength        int    `json:"min_length"`
	MaxLength        int    `json:"max_length"`
	ExpectedBehavior string `json:"expected_behavior,omitempty"`
}

// SecurityCase is a named injection payload and its post-conditions.
type SecurityCase struct {
	Prompt           string   `json:"prompt"`
	ExpectedBehavior string   `json:"expected_behavior,omitempty"`
	ShouldNotContain []string `json:"should_not_contain,omitempty"`
}

// UIValidation carries plain messages for UI smoke checks.
type UIValidation struct {
	TestMessages []string `json:"test_messages"`
}

// Dataset is the full catalogue: queries[language][category].
type Dataset struct {
	Queries      map[string]map[string]Query `json:"queries"`
	UIValidation UIValidation                `json:"ui_validation"`
	Security     map[string]SecurityCase     `json:"security"`
}

var (
	cacheMu sync.Mutex
	cache   = map[string]*Dataset{}
)

// Load reads and validates the dataset at path. Results are cached per path;
// repeated loads within one process return the same instance.
func Load(path string) (*Dataset, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if ds, ok := cache[path]; ok {
		return ds, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}

	var ds Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dataset %s: %w", path, err)
	}

	cache[path] = &ds
	return &ds, nil
}

// ResetCacheForTest drops all cached datasets. Tests only.
func ResetCacheForTest() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cache = map[string]*Dataset{}
}

// Validate enforces the catalogue invariants: no empty prompts, and each
// query prompt belongs to exactly one category within its language.
func (d *Dataset) Validate() error {
	if len(d.Queries) == 0 {
		return fmt.Errorf("dataset has no queries")
	}
	for lang, categories := range d.Queries {
		seen := map[string]string{}
		for category, q := range categories {
			if q.Prompt == "" {
				return fmt.Errorf("empty prompt for %s/%s", lang, category)
			}
			if q.MaxLength > 0 && q.MinLength > q.MaxLength {
				return fmt.Errorf("min_length exceeds max_length for %s/%s", lang, category)
			}
			if prev, dup := seen[q.Prompt]; dup {
				return fmt.Errorf("prompt of %s/%s duplicates category %s", lang, category, prev)
			}
			seen[q.Prompt] = category
		}
	}
	for name, sc := range d.Security {
		if sc.Prompt == "" {
			return fmt.Errorf("empty prompt for security case %q", name)
		}
	}
	return nil
}

// Query returns the query for a language and category.
func (d *Dataset) Query(language, category string) (Query, error) {
	categories, ok := d.Queries[language]
	if !ok {
		return Query{}, fmt.Errorf("unknown language %q", language)
	}
	q, ok := categories[category]
	if !ok {
		return Query{}, fmt.Errorf("unknown category %q for language %q", category, language)
	}
	return q, nil
}

// SecurityCaseByName returns the named security payload.
func (d *Dataset) SecurityCaseByName(name string) (SecurityCase, error) {
	sc, ok := d.Security[name]
	if !ok {
		return SecurityCase{}, fmt.Errorf("unknown security case %q", name)
	}
	return sc, nil
}

// Languages returns the languages present, in unspecified order.
func (d *Dataset) Languages() []string {
	out := make([]string, 0, len(d.Queries))
	for lang := range d.Queries {
		out = append(out, lang)
	}
	return out
}
