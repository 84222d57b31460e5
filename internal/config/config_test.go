package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "target_db: mimic_iii\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Mode != ModeSample {
		t.Fatalf("default mode %q", cfg.Mode)
	}
	if cfg.Benchmark != "EHRSQL" || cfg.Split != "Train" {
		t.Fatalf("unexpected defaults: %s/%s", cfg.Benchmark, cfg.Split)
	}
	if cfg.Distribution.Alpha != 1.0 || cfg.Distribution.PowerLawS != 2.0 {
		t.Fatalf("unexpected shape defaults: alpha %g, s %g", cfg.Distribution.Alpha, cfg.Distribution.PowerLawS)
	}
	if cfg.Distribution.NumQueries != 1000 || cfg.Distribution.Seed != 42 {
		t.Fatalf("unexpected sampling defaults: n %d, seed %d", cfg.Distribution.NumQueries, cfg.Distribution.Seed)
	}
	if !cfg.Shuffle {
		t.Fatalf("shuffle should default to true")
	}
	if cfg.Paths.CatalogFile != filepath.Join("data", "distribution", "EHRSQL_m2.json") {
		t.Fatalf("unexpected catalog default: %s", cfg.Paths.CatalogFile)
	}
	if cfg.RunInfo == nil {
		t.Fatalf("run info not captured")
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, strings.Join([]string{
		"mode: reconstruct",
		"benchmark_type: BIRD",
		"split: Train",
		"domain: bird_all",
		"partition_dbs: [works_cycles, card_games]",
		"distribution:",
		"  type: zipf",
		"  criterion: query_len",
		"  power_law_s: 1.5",
		"  num_queries: 500",
		"  seed: 7",
		"shuffle: false",
	}, "\n")))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Mode != ModeReconstruct || cfg.Domain != "bird_all" {
		t.Fatalf("unexpected mode/domain: %s/%s", cfg.Mode, cfg.Domain)
	}
	if cfg.Distribution.PowerLawS != 1.5 || cfg.Distribution.NumQueries != 500 || cfg.Distribution.Seed != 7 {
		t.Fatalf("overrides lost: %+v", cfg.Distribution)
	}
	if cfg.Shuffle {
		t.Fatalf("shuffle override lost")
	}
	if len(cfg.PartitionDBs) != 2 {
		t.Fatalf("partition_dbs: %v", cfg.PartitionDBs)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"bad mode", "mode: replay\ntarget_db: mimic_iii\n"},
		{"bad benchmark", "benchmark_type: Spider\ntarget_db: mimic_iii\n"},
		{"bad target db", "target_db: sdss\n"},
		{"bad split", "split: Test\ntarget_db: mimic_iii\n"},
		{"bad distribution", "target_db: mimic_iii\ndistribution:\n  type: gaussian\n"},
		{"bad criterion", "target_db: mimic_iii\ndistribution:\n  criterion: by_vibes\n"},
		{"reconstruct without partitions", "mode: reconstruct\nbenchmark_type: BIRD\ndomain: bird_all\n"},
	}
	for _, tc := range cases {
		if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestDistributionKeyAndSourceName(t *testing.T) {
	uniform := Distribution{Type: "uniform", Criterion: "rank"}
	if uniform.Key() != "uniform" || uniform.SourceWorkloadName() != "uniform_rank_1k.json" {
		t.Fatalf("uniform naming: %s / %s", uniform.Key(), uniform.SourceWorkloadName())
	}
	zipf := Distribution{Type: "zipf", Criterion: "query_len"}
	if zipf.Key() != "zipf_query_len" || zipf.SourceWorkloadName() != "zipf_query_len_1k.json" {
		t.Fatalf("zipf naming: %s / %s", zipf.Key(), zipf.SourceWorkloadName())
	}
}

func TestOutputFileNaming(t *testing.T) {
	cfg := Config{
		Benchmark: "EHRSQL",
		Split:     "Train",
		TargetDB:  "eicu",
		Paths:     Paths{OutputDir: "out"},
		Distribution: Distribution{
			Type: "zipf", Criterion: "rank", Alpha: 1.0, NumQueries: 1000,
		},
	}
	want := filepath.Join("out", "EHRSQL_Train_eicu_zipf_rank_alpha1_n1000.json")
	if got := cfg.OutputFile(); got != want {
		t.Fatalf("output file %q, want %q", got, want)
	}

	cfg.Distribution = Distribution{Type: "uniform", Criterion: "rank", NumQueries: 500}
	want = filepath.Join("out", "EHRSQL_Train_eicu_uniform_n500.json")
	if got := cfg.OutputFile(); got != want {
		t.Fatalf("output file %q, want %q", got, want)
	}

	cfg.Paths.OutputFile = "explicit.json"
	if got := cfg.OutputFile(); got != "explicit.json" {
		t.Fatalf("explicit override lost: %q", got)
	}
}
