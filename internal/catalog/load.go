package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Catalog documents nest templates as benchmark -> split -> target_db.
type catalogDocument map[string]map[string]map[string]struct {
	Templates []Template `json:"templates"`
}

// LoadTemplates reads the template list for one {benchmark, split, target_db}
// from a JSON catalog. Missing keys are configuration errors.
func LoadTemplates(path, benchmark, split, targetDB string) ([]Template, error) {
	doc, err := readCatalog(path)
	if err != nil {
		return nil, err
	}
	splits, ok := doc[benchmark]
	if !ok {
		return nil, errors.Errorf("benchmark %q not found in %s", benchmark, path)
	}
	dbs, ok := splits[split]
	if !ok {
		return nil, errors.Errorf("split %q not found for benchmark %q in %s", split, benchmark, path)
	}
	entry, ok := dbs[targetDB]
	if !ok {
		return nil, errors.Errorf("target_db %q not found for %s/%s in %s", targetDB, benchmark, split, path)
	}
	templates := entry.Templates
	for i := range templates {
		templates[i].Partition = targetDB
	}
	return templates, nil
}

// LoadCombinedTemplates merges the Train and Dev template lists of one
// target_db, tagging each template with its source split. Splits absent from
// the catalog are skipped rather than treated as errors.
func LoadCombinedTemplates(path, benchmark, targetDB string) ([]Template, error) {
	doc, err := readCatalog(path)
	if err != nil {
		return nil, err
	}
	splits, ok := doc[benchmark]
	if !ok {
		return nil, errors.Errorf("benchmark %q not found in %s", benchmark, path)
	}
	var combined []Template
	for _, split := range []string{"Train", "Dev"} {
		dbs, ok := splits[split]
		if !ok {
			continue
		}
		entry, ok := dbs[targetDB]
		if !ok {
			continue
		}
		for _, tpl := range entry.Templates {
			tpl.Partition = targetDB
			tpl.SourceSplit = split
			combined = append(combined, tpl)
		}
	}
	return combined, nil
}

func readCatalog(path string) (catalogDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read template catalog")
	}
	var doc catalogDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "decode template catalog %s", path)
	}
	return doc, nil
}

// DistributionEntry is one recorded per-template frequency table together
// with the configuration that produced it.
type DistributionEntry struct {
	Config               DistributionConfig  `json:"config"`
	Statistics           DistributionSummary `json:"statistics"`
	TemplateDistribution map[string]int      `json:"template_distribution"`
}

// DistributionConfig mirrors the config block of a distribution document.
type DistributionConfig struct {
	DistributionType string   `json:"distribution_type"`
	Criterion        *string  `json:"criterion"`
	Alpha            *float64 `json:"alpha"`
	PowerLawS        *float64 `json:"power_law_s"`
	NumSamples       int      `json:"num_samples"`
	Seed             int64    `json:"seed"`
}

// DistributionSummary mirrors the statistics block of a distribution document.
type DistributionSummary struct {
	TotalSamples    int `json:"total_samples"`
	UniqueTemplates int `json:"unique_templates"`
}

// Distribution documents nest entries as split -> benchmark -> domain/db ->
// distribution key.
type distributionDocument map[string]map[string]map[string]map[string]DistributionEntry

// LoadDistribution reads the target per-template counts for one
// {split, benchmark, domain, distribution key}.
func LoadDistribution(path, split, benchmark, domain, distKey string) (map[string]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read distribution file")
	}
	var doc distributionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "decode distribution file %s", path)
	}
	benchmarks, ok := doc[split]
	if !ok {
		return nil, errors.Errorf("split %q not found in %s", split, path)
	}
	domains, ok := benchmarks[benchmark]
	if !ok {
		return nil, errors.Errorf("benchmark %q not found for split %q in %s", benchmark, split, path)
	}
	entries, ok := domains[domain]
	if !ok {
		return nil, errors.Errorf("domain %q not found for %s/%s in %s", domain, split, benchmark, path)
	}
	entry, ok := entries[distKey]
	if !ok {
		return nil, errors.Errorf("distribution key %q not found for %s/%s/%s in %s", distKey, split, benchmark, domain, path)
	}
	return entry.TemplateDistribution, nil
}

// SaveDistributionEntry writes one entry into the nested distribution
// document at path, creating the file and missing levels as needed. Entries
// under other keys are preserved, so realized distributions can be recorded
// back next to their targets.
func SaveDistributionEntry(path, split, benchmark, domain, distKey string, entry DistributionEntry) error {
	doc := distributionDocument{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &doc); err != nil {
			return errors.Wrapf(err, "decode distribution file %s", path)
		}
	case os.IsNotExist(err):
	default:
		return errors.Wrap(err, "read distribution file")
	}
	if doc[split] == nil {
		doc[split] = make(map[string]map[string]map[string]DistributionEntry)
	}
	if doc[split][benchmark] == nil {
		doc[split][benchmark] = make(map[string]map[string]DistributionEntry)
	}
	if doc[split][benchmark][domain] == nil {
		doc[split][benchmark][domain] = make(map[string]DistributionEntry)
	}
	doc[split][benchmark][domain][distKey] = entry

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode distribution file")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create distribution dir")
		}
	}
	return errors.Wrapf(os.WriteFile(path, out, 0o644), "write distribution file %s", path)
}

// LoadWorkloadQueries reads the query list of a recorded workload artifact.
// A missing file yields an empty list: domain reconstruction tolerates
// partitions whose workloads were never generated.
func LoadWorkloadQueries(path string) ([]Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read workload file")
	}
	var doc struct {
		Queries []Instance `json:"queries"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "decode workload file %s", path)
	}
	return doc.Queries, nil
}
