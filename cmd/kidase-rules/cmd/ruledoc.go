package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kidase-app/kidase-rules/internal/types"
)

// ruleDoc is one rule in the authoring file format.
type ruleDoc struct {
	Name           string          `json:"name" yaml:"name"`
	Scope          string          `json:"scope" yaml:"scope"`
	PresentationID string          `json:"presentationId" yaml:"presentationId"`
	SlideID        string          `json:"slideId" yaml:"slideId"`
	ReadingID      string          `json:"readingId" yaml:"readingId"`
	Enabled        *bool           `json:"enabled" yaml:"enabled"`
	Rule           types.RuleEntry `json:"rule" yaml:"rule"`
}

// readingDoc is one reading candidate in the authoring file format.
type readingDoc struct {
	LineID   string            `json:"lineId" yaml:"lineId"`
	Type     string            `json:"type" yaml:"type"`
	Priority int               `json:"priority" yaml:"priority"`
	Lections map[string]string `json:"lections" yaml:"lections"`
}

// authoringFile is the top-level shape of a rule authoring file.
type authoringFile struct {
	Rules    []ruleDoc    `json:"rules" yaml:"rules"`
	Readings []readingDoc `json:"readings" yaml:"readings"`
}

// loadAuthoringFile parses a JSON or YAML authoring file by extension.
func loadAuthoringFile(path string) (*authoringFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc authoringFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported file extension %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}

	if len(doc.Rules) == 0 && len(doc.Readings) == 0 {
		return nil, fmt.Errorf("%s contains no rules or readings", path)
	}
	return &doc, nil
}

// normalizeYAML rewrites YAML-decoded map[any]any trees into the string-keyed
// maps the rule engine expects. yaml.v3 already emits map[string]interface{}
// for string keys, so this only touches exotic keys.
func normalizeYAML(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[k] = normalizeYAML(v)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = normalizeYAML(v)
		}
		return out
	}
	return value
}

// entry returns the rule body with YAML map keys normalized.
func (d *ruleDoc) entry() *types.RuleEntry {
	entry := d.Rule
	if entry.When != nil {
		entry.When = normalizeYAML(entry.When).(map[string]any)
	}
	if entry.Then != nil {
		entry.Then = normalizeYAML(entry.Then).(map[string]any)
	}
	if entry.Otherwise != nil {
		entry.Otherwise = normalizeYAML(entry.Otherwise).(map[string]any)
	}
	if entry.Name == "" {
		entry.Name = d.Name
	}
	return &entry
}
