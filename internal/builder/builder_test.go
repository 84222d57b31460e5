package builder

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"shaper/internal/catalog"
	"shaper/internal/config"
	"shaper/internal/report"
	"shaper/internal/uploader"
	"shaper/internal/verify"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testBuilder(cfg config.Config) *Builder {
	return &Builder{cfg: cfg, reporter: report.New(cfg.Paths.OutputDir), up: uploader.NoopUploader{}}
}

const catalogFixture = `{
  "EHRSQL": {"Train": {"eicu": {"templates": [
    {"template_id": 1, "question_semi_template": "count [m2_0]", "literals": [{"column": "drug"}]},
    {"template_id": 2, "question_semi_template": "list stays"},
    {"template_id": 3, "question_semi_template": "mean dose of [m2_0]", "literals": [{"column": "drug"}]}
  ]}}}
}`

func TestBuildSampledFromCatalog(t *testing.T) {
	dir := t.TempDir()
	catalogPath := writeFile(t, dir, "catalog.json", catalogFixture)
	cfg := config.Config{
		Mode:      config.ModeSample,
		Benchmark: "EHRSQL",
		Split:     "Train",
		TargetDB:  "eicu",
		Distribution: config.Distribution{
			Type: "zipf", Criterion: "rank", Alpha: 1.0, NumQueries: 30, Seed: 42,
		},
		Paths: config.Paths{CatalogFile: catalogPath, OutputDir: dir},
	}

	art, sampled, err := testBuilder(cfg).buildSampled()
	if err != nil {
		t.Fatalf("build sampled: %v", err)
	}
	if len(art.Queries) != 30 {
		t.Fatalf("built %d queries, want 30", len(art.Queries))
	}
	if !art.Statistics.Complete || art.Statistics.TargetCount != 30 {
		t.Fatalf("unexpected statistics: %+v", art.Statistics)
	}
	for i, q := range art.Queries {
		if q.ID != i+1 {
			t.Fatalf("query ids not reindexed: %d at %d", q.ID, i)
		}
		if q.TargetDB != "eicu" {
			t.Fatalf("query provenance %q", q.TargetDB)
		}
	}
	total := 0
	for _, c := range sampled {
		total += c
	}
	if total != 30 {
		t.Fatalf("sampled distribution sums to %d, want 30", total)
	}
	if art.Config.Alpha == nil || *art.Config.Alpha != 1.0 {
		t.Fatalf("alpha not recorded: %+v", art.Config)
	}
}

func TestBuildSampledMaskingHistogramsCountDraws(t *testing.T) {
	dir := t.TempDir()
	catalogPath := writeFile(t, dir, "catalog.json", catalogFixture)
	cfg := config.Config{
		Mode:      config.ModeSample,
		Benchmark: "EHRSQL",
		Split:     "Train",
		TargetDB:  "eicu",
		Distribution: config.Distribution{
			Type: "zipf", Criterion: "rank", Alpha: 1.0, NumQueries: 30, Seed: 42,
		},
		Paths: config.Paths{CatalogFile: catalogPath, OutputDir: dir},
	}

	art, _, err := testBuilder(cfg).buildSampled()
	if err != nil {
		t.Fatalf("build sampled: %v", err)
	}
	// One histogram increment per draw, so the totals match the draw count
	// and the realized query count, not the catalog size.
	sampledTotal := 0
	for _, c := range art.Statistics.OriginalTemplatesPerMaskingCnt {
		sampledTotal += c
	}
	if sampledTotal != 30 {
		t.Fatalf("sampled masking histogram sums to %d, want 30: %v", sampledTotal, art.Statistics.OriginalTemplatesPerMaskingCnt)
	}
	realizedTotal := 0
	for _, c := range art.Statistics.TemplatesPerMaskingCnt {
		realizedTotal += c
	}
	if realizedTotal != len(art.Queries) {
		t.Fatalf("realized masking histogram sums to %d, want %d: %v", realizedTotal, len(art.Queries), art.Statistics.TemplatesPerMaskingCnt)
	}
}

func TestBuildSampledIsSeeded(t *testing.T) {
	dir := t.TempDir()
	catalogPath := writeFile(t, dir, "catalog.json", catalogFixture)
	cfg := config.Config{
		Mode:      config.ModeSample,
		Benchmark: "EHRSQL",
		Split:     "Train",
		TargetDB:  "eicu",
		Distribution: config.Distribution{
			Type: "uniform", Criterion: "rank", NumQueries: 20, Seed: 7,
		},
		Paths:   config.Paths{CatalogFile: catalogPath, OutputDir: dir},
		Shuffle: true,
	}
	first, _, err := testBuilder(cfg).buildSampled()
	if err != nil {
		t.Fatalf("build sampled: %v", err)
	}
	second, _, err := testBuilder(cfg).buildSampled()
	if err != nil {
		t.Fatalf("build sampled: %v", err)
	}
	for i := range first.Queries {
		if first.Queries[i] != second.Queries[i] {
			t.Fatalf("same seed diverged at query %d", i)
		}
	}
}

func workloadFixture(templateID string, n int) string {
	type query struct {
		ID         int    `json:"id"`
		TemplateID string `json:"template_id"`
		Question   string `json:"question"`
		SQL        string `json:"sql"`
	}
	queries := make([]query, 0, n)
	for i := 1; i <= n; i++ {
		queries = append(queries, query{ID: i, TemplateID: templateID, Question: "q", SQL: "SELECT 1"})
	}
	data, _ := json.Marshal(map[string]any{"queries": queries})
	return string(data)
}

func TestBuildReconstructedMatchesTargetShape(t *testing.T) {
	dir := t.TempDir()
	distPath := writeFile(t, dir, "distribution.json", `{
	  "Train": {"BIRD": {"bird_all": {"zipf_rank": {
	    "config": {"distribution_type": "zipf", "num_samples": 10, "seed": 42},
	    "statistics": {"total_samples": 10, "unique_templates": 2},
	    "template_distribution": {"db1_1": 6, "db2_5": 4}
	  }}}}
	}`)
	workloadDir := filepath.Join(dir, "workloads")
	writeFile(t, workloadDir, filepath.Join("db1", "zipf_rank_1k.json"), workloadFixture("1", 20))
	writeFile(t, workloadDir, filepath.Join("db2", "zipf_rank_1k.json"), workloadFixture("5", 20))

	cfg := config.Config{
		Mode:         config.ModeReconstruct,
		Benchmark:    "BIRD",
		Split:        "Train",
		Domain:       "bird_all",
		PartitionDBs: []string{"db1", "db2"},
		Distribution: config.Distribution{
			Type: "zipf", Criterion: "rank", Alpha: 1.0, NumQueries: 10, Seed: 42,
		},
		Paths: config.Paths{DistributionFile: distPath, WorkloadDir: workloadDir, OutputDir: dir},
	}

	art, err := testBuilder(cfg).buildReconstructed()
	if err != nil {
		t.Fatalf("build reconstructed: %v", err)
	}
	if len(art.Queries) != 10 || !art.Statistics.Complete {
		t.Fatalf("built %d queries (complete=%t), want 10 complete", len(art.Queries), art.Statistics.Complete)
	}
	realized := verify.Aggregate(art.Queries)
	perDB := make(map[string]int)
	for key, count := range realized {
		perDB[key.Partition] += count
	}
	if perDB["db1"] != 6 || perDB["db2"] != 4 {
		t.Fatalf("per-db counts %v, want db1=6 db2=4", perDB)
	}
	if art.Statistics.QueriesPerDB["db1"] != 6 || art.Statistics.QueriesPerDB["db2"] != 4 {
		t.Fatalf("statistics per-db counts %v", art.Statistics.QueriesPerDB)
	}
}

func TestBuildReconstructedRandomNeedsNoPriorEntry(t *testing.T) {
	dir := t.TempDir()
	// The distribution file carries only a quota-driven entry; the random
	// mode has no prior and records its own entry back.
	distPath := writeFile(t, dir, "distribution.json", `{
	  "Train": {"BIRD": {"bird_all": {"zipf_rank": {
	    "config": {"distribution_type": "zipf", "num_samples": 10, "seed": 42},
	    "statistics": {"total_samples": 10, "unique_templates": 2},
	    "template_distribution": {"db1_1": 9, "db2_5": 1}
	  }}}}
	}`)
	workloadDir := filepath.Join(dir, "workloads")
	writeFile(t, workloadDir, filepath.Join("db1", "zipf_random_1k.json"), workloadFixture("1", 8))
	writeFile(t, workloadDir, filepath.Join("db2", "zipf_random_1k.json"), workloadFixture("5", 8))

	cfg := config.Config{
		Mode:         config.ModeReconstruct,
		Benchmark:    "BIRD",
		Split:        "Train",
		Domain:       "bird_all",
		PartitionDBs: []string{"db1", "db2"},
		Distribution: config.Distribution{
			Type: "zipf", Criterion: "random", Alpha: 1.0, NumQueries: 12, Seed: 42,
		},
		Paths: config.Paths{DistributionFile: distPath, WorkloadDir: workloadDir, OutputDir: dir},
	}

	art, err := testBuilder(cfg).buildReconstructed()
	if err != nil {
		t.Fatalf("build reconstructed: %v", err)
	}
	if len(art.Queries) != 12 {
		t.Fatalf("built %d queries, want 12", len(art.Queries))
	}

	// The realized shape is recorded back into the distribution document.
	recorded, err := catalog.LoadDistribution(distPath, "Train", "BIRD", "bird_all", "zipf_random")
	if err != nil {
		t.Fatalf("realized distribution not recorded back: %v", err)
	}
	total := 0
	for _, c := range recorded {
		total += c
	}
	if total != 12 {
		t.Fatalf("recorded distribution sums to %d, want 12", total)
	}
	// The pre-existing quota-driven entry survives the write-back.
	if _, err := catalog.LoadDistribution(distPath, "Train", "BIRD", "bird_all", "zipf_rank"); err != nil {
		t.Fatalf("existing entry lost: %v", err)
	}
}

func TestRunWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	catalogPath := writeFile(t, dir, "catalog.json", catalogFixture)
	outDir := filepath.Join(dir, "out")
	cfg := config.Config{
		Mode:      config.ModeSample,
		Benchmark: "EHRSQL",
		Split:     "Train",
		TargetDB:  "eicu",
		Distribution: config.Distribution{
			Type: "uniform", Criterion: "rank", NumQueries: 5, Seed: 42,
		},
		Paths:   config.Paths{CatalogFile: catalogPath, OutputDir: outDir},
		Archive: true,
	}
	if err := testBuilder(cfg).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	runs, err := os.ReadDir(outDir)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected one run directory, got %v (%v)", runs, err)
	}
	runDir := filepath.Join(outDir, runs[0].Name())
	entries, err := os.ReadDir(runDir)
	if err != nil {
		t.Fatalf("read run dir: %v", err)
	}
	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name()] = true
	}
	if !names["EHRSQL_Train_eicu_uniform_n5.json"] {
		t.Fatalf("workload artifact missing from %v", entries)
	}
	if !names["EHRSQL_Train_eicu_uniform_n5_distribution.json"] || !names["EHRSQL_Train_eicu_uniform_n5_sampled_distribution.json"] {
		t.Fatalf("distribution dumps missing from %v", entries)
	}
	if !names[report.RunArchiveName] {
		t.Fatalf("archive missing from %v", entries)
	}
}
