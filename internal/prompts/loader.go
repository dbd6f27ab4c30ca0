// Package prompts provides the catalog of LLM prompt templates.
// Built-in templates are stored as JSON files and embedded at compile time; a deployment
// may override individual templates from a JSON or YAML file.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/idea-evaluator/internal/schemas"
)

//go:embed *.json
var promptFiles embed.FS

// Template sets
const (
	SetEnhancement = "enhancement"
	SetEvaluation  = "evaluation"
)

// KeySystem is the evaluation template sent as the system message of every criterion call
const KeySystem = "system"

// Placeholders understood by the built-in templates
const (
	PlaceholderIdea       = "{{.Idea}}"
	PlaceholderDepartment = "{{.Department}}"
)

var placeholderPattern = regexp.MustCompile(`\{\{\.(\w+)\}\}`)

// Template is one prompt template
type Template struct {
	Set  string
	Key  string
	Text string
	// Default is true for built-in templates and false for overrides
	Default bool
}

// Render fills the template's placeholders from data
func (t Template) Render(data map[string]string) string {
	return Format(t.Text, data)
}

// TemplateError reports a missing or malformed template. It is a configuration
// error: retrying will not help.
type TemplateError struct {
	Set     string
	Key     string
	Message string
	Cause   error
}

func (e *TemplateError) Error() string {
	target := e.Set
	if e.Key != "" {
		target = e.Set + "/" + e.Key
	}
	if e.Cause != nil {
		return fmt.Sprintf("prompt template %s: %s: %v", target, e.Message, e.Cause)
	}
	return fmt.Sprintf("prompt template %s: %s", target, e.Message)
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// Catalog is a read-only set of prompt templates. It is built once at startup and
// may be shared by concurrent callers without locking.
type Catalog struct {
	sets map[string]map[string]Template
}

// NewCatalog builds a catalog from raw template text keyed by set and key.
// Templates built this way are not marked as defaults.
func NewCatalog(sets map[string]map[string]string) *Catalog {
	c := &Catalog{sets: make(map[string]map[string]Template, len(sets))}
	for set, templates := range sets {
		for key, text := range templates {
			c.put(Template{Set: set, Key: key, Text: text})
		}
	}
	return c
}

// Load returns the built-in catalog
func Load() (*Catalog, error) {
	c := &Catalog{sets: make(map[string]map[string]Template)}
	for _, set := range []string{SetEnhancement, SetEvaluation} {
		templates, err := loadFile(set + ".json")
		if err != nil {
			return nil, &TemplateError{Set: set, Message: "failed to load built-in templates", Cause: err}
		}
		for key, text := range templates {
			c.put(Template{Set: set, Key: key, Text: text, Default: true})
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadWithOverrides returns the built-in catalog with templates from path replacing
// the built-in ones key by key. The file may be JSON or YAML (.yaml, .yml) and is
// checked against the prompt catalog schema. An empty path loads the built-ins only.
func LoadWithOverrides(path string) (*Catalog, error) {
	c, err := Load()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &TemplateError{Set: filepath.Base(path), Message: "failed to read override file", Cause: err}
	}
	overrides, err := parseOverrides(path, data)
	if err != nil {
		return nil, err
	}

	for set, templates := range overrides {
		for key, text := range templates {
			c.put(Template{Set: set, Key: key, Text: text})
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// parseOverrides decodes an override file and validates it against the schema.
// YAML is converted to JSON first so both formats go through the same check.
func parseOverrides(path string, data []byte) (map[string]map[string]string, error) {
	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(path))

	if ext == ".yaml" || ext == ".yml" {
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &TemplateError{Set: name, Message: "failed to parse YAML", Cause: err}
		}
		if doc == nil {
			doc = map[string]any{}
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, &TemplateError{Set: name, Message: "failed to convert YAML", Cause: err}
		}
		data = converted
	}

	if err := schemas.ValidatePromptOverrides(data); err != nil {
		return nil, &TemplateError{Set: name, Message: "override file does not match schema", Cause: err}
	}

	var overrides map[string]map[string]string
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, &TemplateError{Set: name, Message: "failed to parse JSON", Cause: err}
	}
	return overrides, nil
}

func (c *Catalog) put(t Template) {
	if c.sets[t.Set] == nil {
		c.sets[t.Set] = make(map[string]Template)
	}
	c.sets[t.Set][t.Key] = t
}

// Get returns the template for set and key
func (c *Catalog) Get(set, key string) (Template, error) {
	t, ok := c.sets[set][key]
	if !ok {
		return Template{}, &TemplateError{Set: set, Key: key, Message: "not found"}
	}
	return t, nil
}

// List returns the template keys in a set, sorted
func (c *Catalog) List(set string) []string {
	keys := make([]string, 0, len(c.sets[set]))
	for key := range c.sets[set] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Sets returns the set names, sorted
func (c *Catalog) Sets() []string {
	sets := make([]string, 0, len(c.sets))
	for set := range c.sets {
		sets = append(sets, set)
	}
	sort.Strings(sets)
	return sets
}

// Validate checks that every evaluation criterion template carries the idea placeholder
func (c *Catalog) Validate() error {
	for _, key := range c.List(SetEvaluation) {
		if key == KeySystem {
			continue
		}
		if !strings.Contains(c.sets[SetEvaluation][key].Text, PlaceholderIdea) {
			return &TemplateError{Set: SetEvaluation, Key: key, Message: "missing " + PlaceholderIdea + " placeholder"}
		}
	}
	return nil
}

// Format replaces template placeholders in the form {{.Key}} with values from data.
// Placeholders without a value are left in place.
// Substituted values are not scanned again.
func Format(template string, data map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		if value, ok := data[match[3:len(match)-2]]; ok {
			return value
		}
		return match
	})
}

// loadFile reads one embedded template file
func loadFile(filename string) (map[string]string, error) {
	data, err := promptFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}

	var prompts map[string]string
	if err := json.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}
	return prompts, nil
}
