package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"shaper/internal/catalog"
	"shaper/internal/config"
	"shaper/internal/quota"
	"shaper/internal/util"
	"shaper/internal/verify"
)

// realizedDocument mirrors the recorded distribution layout:
// split -> benchmark -> database -> distribution key.
type realizedDocument map[string]map[string]map[string]map[string]catalog.DistributionEntry

// distributions enumerates the workload variants recorded per database.
var distributions = []config.Distribution{
	{Type: "uniform", Criterion: "rank"},
	{Type: "zipf", Criterion: "rank"},
	{Type: "zipf", Criterion: "random"},
	{Type: "zipf", Criterion: "query_len"},
}

func main() {
	workloadDir := flag.String("workload_dir", "data/workloads", "directory of per-database workload files")
	distFile := flag.String("distribution_file", "", "target distribution file to compare against (optional)")
	split := flag.String("split", "Train", "split label for the output document")
	benchmark := flag.String("benchmark", "BIRD", "benchmark label for the output document")
	output := flag.String("output", "realized_distribution.json", "output path for the aggregated document")
	flag.Parse()

	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	entries, err := os.ReadDir(*workloadDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read workload dir: %v\n", err)
		os.Exit(1)
	}
	var dbs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dbs = append(dbs, entry.Name())
		}
	}
	sort.Strings(dbs)
	if len(dbs) == 0 {
		fmt.Fprintf(os.Stderr, "no database directories under %s\n", *workloadDir)
		os.Exit(1)
	}

	doc := realizedDocument{*split: {*benchmark: {}}}
	comparisons := make(map[string]verify.Comparison)
	for _, db := range dbs {
		perKey := make(map[string]catalog.DistributionEntry)
		for _, dist := range distributions {
			path := filepath.Join(*workloadDir, db, dist.SourceWorkloadName())
			queries, err := catalog.LoadWorkloadQueries(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", path, err)
				os.Exit(1)
			}
			if len(queries) == 0 {
				continue
			}
			for i := range queries {
				if queries[i].TargetDB == "" {
					queries[i].TargetDB = db
				}
			}
			realized := verify.Aggregate(queries)
			perKey[dist.Key()] = realizedEntry(dist, realized)
			util.Infof("%s/%s: %d queries over %d templates", db, dist.Key(), realized.Total(), len(realized))

			if *distFile == "" {
				continue
			}
			raw, err := catalog.LoadDistribution(*distFile, *split, *benchmark, db, dist.Key())
			if err != nil {
				util.Warnf("no target distribution for %s/%s: %v", db, dist.Key(), err)
				continue
			}
			target := make(quota.Table, len(raw))
			for key, count := range raw {
				target[catalog.ResolveKey(key, []string{db})] = count
			}
			cmp := verify.Compare(target, realized)
			comparisons[db+"/"+dist.Key()] = cmp
			util.Infof("%s/%s: matched %d, missing %d, mad %.3f, corr %.3f",
				db, dist.Key(), cmp.MatchedTemplates, len(cmp.MissingTemplates), cmp.MeanAbsDeviation, cmp.Correlation)
		}
		if len(perKey) > 0 {
			doc[*split][*benchmark][db] = perKey
		}
	}

	if err := writeJSON(*output, doc); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", *output, err)
		os.Exit(1)
	}
	util.Highlightf("wrote realized distributions to %s", *output)

	if len(comparisons) > 0 {
		cmpPath := strings.TrimSuffix(*output, ".json") + "_comparison.json"
		if err := writeJSON(cmpPath, comparisons); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", cmpPath, err)
			os.Exit(1)
		}
		util.Highlightf("wrote comparisons to %s", cmpPath)
	}
}

func realizedEntry(dist config.Distribution, realized quota.Table) catalog.DistributionEntry {
	counts := make(map[string]int, len(realized))
	for key, count := range realized {
		counts[key.String()] = count
	}
	entry := catalog.DistributionEntry{
		Config: catalog.DistributionConfig{
			DistributionType: dist.Type,
			NumSamples:       realized.Total(),
		},
		Statistics: catalog.DistributionSummary{
			TotalSamples:    realized.Total(),
			UniqueTemplates: len(realized),
		},
		TemplateDistribution: counts,
	}
	if dist.Type == "zipf" {
		criterion := dist.Criterion
		entry.Config.Criterion = &criterion
	}
	return entry
}

func writeJSON(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(f, "verify output")
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
