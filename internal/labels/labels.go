// Package labels loads the localized strings used for PDF headings and user
// notices.
package labels

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultLocale is used when a requested locale is not registered.
const DefaultLocale = "en"

// Sections holds the headings of a rendered briefing.
type Sections struct {
	Objective          string `yaml:"objective"`
	TargetAudience     string `yaml:"target_audience"`
	References         string `yaml:"references"`
	Deadlines          string `yaml:"deadlines"`
	Start              string `yaml:"start"`
	Delivery           string `yaml:"delivery"`
	IntermediateStages string `yaml:"intermediate_stages"`
	Budget             string `yaml:"budget"`
	Total              string `yaml:"total"`
	PerStage           string `yaml:"per_stage"`
	Notes              string `yaml:"notes"`
}

// Notices holds the messages shown after editor actions.
type Notices struct {
	Generated      string `yaml:"generated"`
	GenerateFailed string `yaml:"generate_failed"`
	Saved          string `yaml:"saved"`
	SaveFailed     string `yaml:"save_failed"`
	Deleted        string `yaml:"deleted"`
	Queued         string `yaml:"queued"`
}

// LabelSet is one parsed locale file.
type LabelSet struct {
	Locale   string   `yaml:"locale"`
	Name     string   `yaml:"name"`
	Currency string   `yaml:"currency"`
	Sections Sections `yaml:"sections"`
	Notices  Notices  `yaml:"notices"`
}

// ParseLabelSet decodes a locale file. Unknown keys are rejected so a typo in
// a heading name fails at startup instead of rendering an empty heading.
func ParseLabelSet(data []byte) (*LabelSet, error) {
	var set LabelSet
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to parse label set: %w", err)
	}

	if set.Locale == "" {
		return nil, fmt.Errorf("label set missing required field: locale")
	}
	if missing := set.missingSections(); len(missing) > 0 {
		return nil, fmt.Errorf("label set %s missing sections: %s", set.Locale, strings.Join(missing, ", "))
	}
	return &set, nil
}

func (s *LabelSet) missingSections() []string {
	fields := []struct {
		key, value string
	}{
		{"objective", s.Sections.Objective},
		{"target_audience", s.Sections.TargetAudience},
		{"references", s.Sections.References},
		{"deadlines", s.Sections.Deadlines},
		{"start", s.Sections.Start},
		{"delivery", s.Sections.Delivery},
		{"intermediate_stages", s.Sections.IntermediateStages},
		{"budget", s.Sections.Budget},
		{"total", s.Sections.Total},
		{"per_stage", s.Sections.PerStage},
		{"notes", s.Sections.Notes},
	}

	var missing []string
	for _, f := range fields {
		if f.value == "" {
			missing = append(missing, f.key)
		}
	}
	return missing
}
