package catalog

import (
	"sort"
	"strings"
)

// TemplateKey identifies a template within a source partition. The empty
// partition is used by benchmarks whose template ids are already unique
// across the catalog.
type TemplateKey struct {
	Partition  string
	TemplateID string
}

// Key builds the composite key for a template.
func (t Template) Key() TemplateKey {
	return TemplateKey{Partition: t.Partition, TemplateID: t.ID}
}

// String renders the key in the wire form used by distribution documents:
// "<partition>_<template_id>", or the bare template id when the key has no
// partition.
func (k TemplateKey) String() string {
	if k.Partition == "" {
		return k.TemplateID
	}
	return k.Partition + "_" + k.TemplateID
}

// ResolveKey parses a wire-form key against a set of known partition names.
// Partition names may themselves contain underscores, so the longest known
// partition prefix wins. A key with no matching partition resolves to a bare
// template id.
func ResolveKey(raw string, partitions []string) TemplateKey {
	sorted := append([]string(nil), partitions...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	for _, p := range sorted {
		if p == "" {
			continue
		}
		if strings.HasPrefix(raw, p+"_") {
			return TemplateKey{Partition: p, TemplateID: raw[len(p)+1:]}
		}
	}
	return TemplateKey{TemplateID: raw}
}
