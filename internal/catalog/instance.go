package catalog

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Instance is one literal-bound realization of a template. Instances come
// from per-partition workload documents and keep their original id until the
// final artifact is re-indexed.
type Instance struct {
	ID             int
	TemplateID     string
	Question       string
	SQL            string
	SamplingMethod string
	TargetDB       string
}

// Key builds the ledger key of the instance. The partition is taken from the
// provenance field so that identical template ids from different databases
// stay distinct.
func (i Instance) Key() TemplateKey {
	return TemplateKey{Partition: i.TargetDB, TemplateID: i.TemplateID}
}

type instanceJSON struct {
	ID             int             `json:"id"`
	TemplateID     json.RawMessage `json:"template_id"`
	Question       string          `json:"question,omitempty"`
	SQL            string          `json:"sql,omitempty"`
	SamplingMethod string          `json:"sampling_method,omitempty"`
	TargetDB       string          `json:"target_db,omitempty"`
}

// UnmarshalJSON accepts template_id as a number or a string, matching the
// mixed forms found in recorded workloads.
func (i *Instance) UnmarshalJSON(data []byte) error {
	var raw instanceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "decode query record")
	}
	tid, err := flexibleString(raw.TemplateID)
	if err != nil {
		return errors.Wrap(err, "decode template_id")
	}
	i.ID = raw.ID
	i.TemplateID = tid
	i.Question = raw.Question
	i.SQL = raw.SQL
	i.SamplingMethod = raw.SamplingMethod
	i.TargetDB = raw.TargetDB
	return nil
}

// MarshalJSON writes the canonical string form of template_id.
func (i Instance) MarshalJSON() ([]byte, error) {
	payload := struct {
		ID             int    `json:"id"`
		TemplateID     string `json:"template_id"`
		Question       string `json:"question,omitempty"`
		SQL            string `json:"sql,omitempty"`
		SamplingMethod string `json:"sampling_method,omitempty"`
		TargetDB       string `json:"target_db,omitempty"`
	}{
		ID:             i.ID,
		TemplateID:     i.TemplateID,
		Question:       i.Question,
		SQL:            i.SQL,
		SamplingMethod: i.SamplingMethod,
		TargetDB:       i.TargetDB,
	}
	return json.Marshal(payload)
}
