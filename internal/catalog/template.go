// Package catalog defines the template and instance records consumed by the
// workload construction engine, and the loaders for their JSON documents.
package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Template is a parametrized query pattern with masked literal slots.
// Templates are read-only inputs; ranking and sampling never mutate them.
type Template struct {
	ID               string
	Partition        string
	SourceSplit      string
	QuestionPatterns []string
	Literals         []LiteralSlot
	Count            int
}

// LiteralSlot describes one masked literal position of a template.
type LiteralSlot struct {
	Table  string `json:"table,omitempty"`
	Column string `json:"column,omitempty"`
	Type   string `json:"type,omitempty"`
	Value  any    `json:"value,omitempty"`
}

// maskType is the positional marker family used in question patterns,
// e.g. "[m2_0]" for the first literal slot.
const maskType = "m2"

// PrimaryQuestion returns the first natural-language variant, or "" when the
// template carries none.
func (t Template) PrimaryQuestion() string {
	if len(t.QuestionPatterns) == 0 {
		return ""
	}
	return t.QuestionPatterns[0]
}

// QuestionLength is the length of the primary question pattern. It is the
// rank criterion for length-ordered populations and the weight base for
// power-law sampling.
func (t Template) QuestionLength() int {
	return len([]rune(t.PrimaryQuestion()))
}

// MaskCount counts the distinct positional mask markers of the template that
// actually occur in its primary question pattern.
func (t Template) MaskCount() int {
	question := t.PrimaryQuestion()
	count := 0
	for idx := range t.Literals {
		marker := fmt.Sprintf("[%s_%d]", maskType, idx)
		if strings.Contains(question, marker) {
			count++
		}
	}
	return count
}

type templateJSON struct {
	ID          json.RawMessage `json:"template_id"`
	Question    json.RawMessage `json:"question_semi_template"`
	Literals    []LiteralSlot   `json:"literals"`
	Count       int             `json:"cnt"`
	SourceSplit string          `json:"source_split"`
}

// UnmarshalJSON accepts the catalog wire format, where template_id may be a
// number or a string and question_semi_template may be a single string or a
// list of language variants.
func (t *Template) UnmarshalJSON(data []byte) error {
	var raw templateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "decode template record")
	}
	id, err := flexibleString(raw.ID)
	if err != nil {
		return errors.Wrap(err, "decode template_id")
	}
	patterns, err := flexibleStringList(raw.Question)
	if err != nil {
		return errors.Wrap(err, "decode question_semi_template")
	}
	t.ID = id
	t.QuestionPatterns = patterns
	t.Literals = raw.Literals
	t.Count = raw.Count
	t.SourceSplit = raw.SourceSplit
	return nil
}

// MarshalJSON writes the same wire format back out.
func (t Template) MarshalJSON() ([]byte, error) {
	payload := struct {
		ID          string        `json:"template_id"`
		Question    []string      `json:"question_semi_template"`
		Literals    []LiteralSlot `json:"literals,omitempty"`
		Count       int           `json:"cnt,omitempty"`
		SourceSplit string        `json:"source_split,omitempty"`
	}{
		ID:          t.ID,
		Question:    t.QuestionPatterns,
		Literals:    t.Literals,
		Count:       t.Count,
		SourceSplit: t.SourceSplit,
	}
	return json.Marshal(payload)
}

func flexibleString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", errors.Errorf("neither string nor number: %s", string(raw))
	}
	return n.String(), nil
}

func flexibleStringList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Errorf("neither string nor string list: %s", string(raw))
	}
	return []string{s}, nil
}
