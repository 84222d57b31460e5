// Package builder orchestrates one workload construction run: loading
// templates or recorded workloads, shaping the query list, and persisting
// the artifact with its distribution document.
package builder

import (
	"context"
	"math/rand"
	"path/filepath"
	"strings"

	"shaper/internal/catalog"
	"shaper/internal/config"
	"shaper/internal/ledger"
	"shaper/internal/quota"
	"shaper/internal/rank"
	"shaper/internal/report"
	"shaper/internal/sample"
	"shaper/internal/selector"
	"shaper/internal/uploader"
	"shaper/internal/util"
	"shaper/internal/verify"
	"shaper/internal/workload"

	"github.com/pkg/errors"
)

// Builder runs workload construction according to one loaded config.
type Builder struct {
	cfg      config.Config
	reporter *report.Reporter
	up       uploader.Uploader
}

// New wires a builder from config: reporter on the output directory and the
// configured upload backend (noop when cloud storage is disabled).
func New(cfg config.Config) (*Builder, error) {
	up, err := newUploader(cfg.Storage)
	if err != nil {
		return nil, err
	}
	return &Builder{
		cfg:      cfg,
		reporter: report.New(cfg.Paths.OutputDir),
		up:       up,
	}, nil
}

func newUploader(cfg config.StorageConfig) (uploader.Uploader, error) {
	switch {
	case cfg.GCS.Enabled:
		return uploader.NewGCS(cfg.GCS)
	case cfg.S3.Enabled:
		return uploader.NewS3(cfg.S3)
	default:
		return uploader.NoopUploader{}, nil
	}
}

// Run executes the configured mode and writes the run artifacts.
func (b *Builder) Run(ctx context.Context) error {
	run, err := b.reporter.NewRun()
	if err != nil {
		return errors.Wrap(err, "create run directory")
	}
	util.Infof("run %s writing to %s", run.ID, run.Dir)

	var art workload.Artifact
	var sampled map[string]int
	switch b.cfg.Mode {
	case config.ModeSample:
		art, sampled, err = b.buildSampled()
	case config.ModeReconstruct:
		art, err = b.buildReconstructed()
	default:
		err = errors.Errorf("unsupported mode: %q", b.cfg.Mode)
	}
	if err != nil {
		return err
	}

	name := filepath.Base(b.cfg.OutputFile())
	if err := b.reporter.WriteWorkload(run, name, art); err != nil {
		return errors.Wrap(err, "write workload artifact")
	}

	base := strings.TrimSuffix(name, ".json")
	realized := wireCounts(verify.Aggregate(art.Queries))
	if err := b.reporter.WriteDistribution(run, base+"_distribution.json", report.NewDistributionDump(realized)); err != nil {
		return errors.Wrap(err, "write realized distribution")
	}
	if sampled != nil {
		if err := b.reporter.WriteDistribution(run, base+"_sampled_distribution.json", report.NewDistributionDump(sampled)); err != nil {
			return errors.Wrap(err, "write sampled distribution")
		}
	}

	if art.Statistics.Complete {
		util.Infof("workload complete: %d queries over %d templates", art.Statistics.TotalQueries, art.Statistics.UniqueTemplates)
	} else {
		util.Warnf("workload under-filled: %d of %d queries (pools exhausted)", art.Statistics.TotalQueries, art.Statistics.TargetCount)
	}

	if b.cfg.Archive {
		archive, codec, err := b.reporter.ArchiveRun(run)
		if err != nil {
			return errors.Wrap(err, "archive run directory")
		}
		util.Infof("archived run as %s (%s)", archive, codec)
	}
	if b.up.Enabled() {
		location, err := b.up.UploadDir(ctx, run.Dir)
		if err != nil {
			return errors.Wrap(err, "upload run directory")
		}
		util.Highlightf("uploaded run to %s", location)
	}
	return nil
}

// buildSampled draws an i.i.d. workload from the configured distribution
// family. With an instance pool configured, the sampled per-template counts
// become quotas realized by the selector; without one, each draw materializes
// directly from its template with mask markers left in place.
func (b *Builder) buildSampled() (workload.Artifact, map[string]int, error) {
	cfg := b.cfg
	dist := cfg.Distribution

	var templates []catalog.Template
	var err error
	if cfg.Split == "Combined" {
		templates, err = catalog.LoadCombinedTemplates(cfg.Paths.CatalogFile, cfg.Benchmark, cfg.TargetDB)
	} else {
		templates, err = catalog.LoadTemplates(cfg.Paths.CatalogFile, cfg.Benchmark, cfg.Split, cfg.TargetDB)
	}
	if err != nil {
		return workload.Artifact{}, nil, err
	}
	util.Infof("loaded %d templates for %s/%s/%s", len(templates), cfg.Benchmark, cfg.Split, cfg.TargetDB)

	rng := rand.New(rand.NewSource(dist.Seed))
	criterion := rank.Criterion(dist.Criterion)
	ordered, err := rank.Order(templates, criterion, rng)
	if err != nil {
		return workload.Artifact{}, nil, err
	}
	drawn, err := sample.New(rng).Draw(ordered, dist.NumQueries, dist.Type, criterion, sample.Params{
		Alpha:     dist.Alpha,
		PowerLawS: dist.PowerLawS,
	})
	if err != nil {
		return workload.Artifact{}, nil, err
	}

	quotas := make(quota.Table, len(templates))
	for _, tpl := range drawn {
		quotas[tpl.Key()]++
	}

	var queries []catalog.Instance
	var res selector.Result
	if cfg.Paths.InstancePoolFile != "" {
		pool, _, err := loadPool(cfg.Paths.InstancePoolFile, cfg.TargetDB)
		if err != nil {
			return workload.Artifact{}, nil, err
		}
		res = selector.New(ledger.New()).Select(pool, quotas)
		queries = res.Selected
		if err := workload.CheckNoReuse(queries); err != nil {
			return workload.Artifact{}, nil, err
		}
		if res.BackfillRounds > 0 {
			util.Infof("backfill added %d queries over %d sweeps", res.BackfillAdded, res.BackfillRounds)
		}
		for _, key := range res.Unsatisfiable {
			util.Warnf("no instances pooled for template %s", key)
		}
	} else {
		for i, tpl := range drawn {
			queries = append(queries, catalog.Instance{
				ID:             i + 1,
				TemplateID:     tpl.ID,
				Question:       tpl.PrimaryQuestion(),
				SamplingMethod: dist.Key(),
				TargetDB:       tpl.Partition,
			})
		}
		res = selector.Result{Target: len(drawn), Selected: queries}
	}

	art := workload.Artifact{
		Config:  b.configInfo(),
		RunInfo: cfg.RunInfo,
		Queries: queries,
		Statistics: workload.Statistics{
			TotalQueries:                   len(queries),
			TargetCount:                    dist.NumQueries,
			Complete:                       len(queries) == dist.NumQueries,
			UniqueTemplates:                len(verify.Aggregate(queries)),
			QueriesPerDB:                   res.PerPartition,
			TemplatesPerMaskingCnt:         maskingCounts(queries, templates),
			OriginalTemplatesPerMaskingCnt: workload.MaskingHistogram(drawn),
		},
	}
	b.finalize(&art, rng)
	return art, wireCounts(quotas), nil
}

// buildReconstructed rebuilds a domain workload from recorded per-database
// workloads. Quota-driven keys match a recorded target distribution. The
// zipf_random key has no prior: it draws uniformly over the deduplicated
// pooled instances and records its realized distribution back into the
// distribution document.
func (b *Builder) buildReconstructed() (workload.Artifact, error) {
	cfg := b.cfg
	dist := cfg.Distribution
	random := dist.Key() == "zipf_random"

	pool := make(selector.Pool)
	var order []catalog.TemplateKey
	for _, db := range cfg.PartitionDBs {
		path := filepath.Join(cfg.Paths.WorkloadDir, db, dist.SourceWorkloadName())
		recorded, err := catalog.LoadWorkloadQueries(path)
		if err != nil {
			return workload.Artifact{}, err
		}
		if len(recorded) == 0 {
			util.Warnf("no recorded workload for %s at %s", db, path)
			continue
		}
		for _, q := range recorded {
			q.TargetDB = db
			key := q.Key()
			if _, ok := pool[key]; !ok {
				order = append(order, key)
			}
			pool[key] = append(pool[key], q)
		}
	}

	rng := rand.New(rand.NewSource(dist.Seed))
	sel := selector.New(ledger.New())
	var res selector.Result
	if random {
		res = sel.SelectRandom(pool, order, dist.NumQueries, rng)
	} else {
		prior, err := catalog.LoadDistribution(cfg.Paths.DistributionFile, cfg.Split, cfg.Benchmark, cfg.Domain, dist.Key())
		if err != nil {
			return workload.Artifact{}, err
		}
		target := make(quota.Table, len(prior))
		for raw, count := range prior {
			target[catalog.ResolveKey(raw, cfg.PartitionDBs)] = count
		}
		quotas, err := quota.Build(target, dist.NumQueries)
		if err != nil {
			return workload.Artifact{}, err
		}
		res = sel.Select(pool, quotas)
		if res.BackfillRounds > 0 {
			util.Infof("backfill added %d queries over %d sweeps", res.BackfillAdded, res.BackfillRounds)
		}
	}
	for _, key := range res.Unsatisfiable {
		util.Warnf("no instances pooled for template %s", key)
	}
	if err := workload.CheckNoReuse(res.Selected); err != nil {
		return workload.Artifact{}, err
	}

	if random && cfg.Paths.DistributionFile != "" {
		if err := b.recordRealized(verify.Aggregate(res.Selected)); err != nil {
			return workload.Artifact{}, err
		}
	}

	art := workload.Artifact{
		Config:  b.configInfo(),
		RunInfo: cfg.RunInfo,
		Queries: res.Selected,
		Statistics: workload.Statistics{
			TotalQueries:    len(res.Selected),
			TargetCount:     res.Target,
			Complete:        res.Complete(),
			UniqueTemplates: len(verify.Aggregate(res.Selected)),
			QueriesPerDB:    res.PerPartition,
		},
	}
	b.finalize(&art, rng)
	return art, nil
}

func (b *Builder) finalize(art *workload.Artifact, rng *rand.Rand) {
	if b.cfg.Shuffle {
		workload.Shuffle(art.Queries, rng)
	} else {
		workload.Reindex(art.Queries)
	}
}

func (b *Builder) configInfo() workload.ConfigInfo {
	cfg := b.cfg
	dist := cfg.Distribution
	info := workload.ConfigInfo{
		Benchmark:        cfg.Benchmark,
		Split:            cfg.Split,
		TargetDB:         cfg.TargetDB,
		Domain:           cfg.Domain,
		DistributionType: dist.Type,
		NumQueries:       dist.NumQueries,
		TargetCount:      dist.NumQueries,
		Seed:             dist.Seed,
	}
	if dist.Type == "zipf" {
		info.Criterion = dist.Criterion
		if dist.Criterion == "query_len" {
			s := dist.PowerLawS
			info.PowerLawS = &s
		} else {
			a := dist.Alpha
			info.Alpha = &a
		}
	}
	return info
}

// recordRealized writes the realized per-template counts of a random
// reconstruction back into the distribution document, under the run's
// {split, benchmark, domain, distribution key}.
func (b *Builder) recordRealized(realized quota.Table) error {
	cfg := b.cfg
	dist := cfg.Distribution
	criterion := dist.Criterion
	entry := catalog.DistributionEntry{
		Config: catalog.DistributionConfig{
			DistributionType: dist.Type,
			Criterion:        &criterion,
			NumSamples:       dist.NumQueries,
			Seed:             dist.Seed,
		},
		Statistics: catalog.DistributionSummary{
			TotalSamples:    realized.Total(),
			UniqueTemplates: len(realized),
		},
		TemplateDistribution: wireCounts(realized),
	}
	if err := catalog.SaveDistributionEntry(cfg.Paths.DistributionFile, cfg.Split, cfg.Benchmark, cfg.Domain, dist.Key(), entry); err != nil {
		return errors.Wrap(err, "record realized distribution")
	}
	util.Infof("recorded realized %s distribution for %s into %s", dist.Key(), cfg.Domain, cfg.Paths.DistributionFile)
	return nil
}

// maskingCounts builds the masking histogram of a realized query list, one
// increment per query, resolved through the template catalog.
func maskingCounts(queries []catalog.Instance, templates []catalog.Template) map[int]int {
	if len(queries) == 0 {
		return nil
	}
	byKey := make(map[catalog.TemplateKey]catalog.Template, len(templates))
	for _, tpl := range templates {
		byKey[tpl.Key()] = tpl
	}
	hist := make(map[int]int)
	for _, q := range queries {
		if tpl, ok := byKey[q.Key()]; ok {
			hist[tpl.MaskCount()]++
		}
	}
	return hist
}

// loadPool reads one workload document into a selector pool. Instances
// without recorded provenance fall back to the configured partition.
func loadPool(path, defaultPartition string) (selector.Pool, []catalog.TemplateKey, error) {
	recorded, err := catalog.LoadWorkloadQueries(path)
	if err != nil {
		return nil, nil, err
	}
	pool := make(selector.Pool)
	var order []catalog.TemplateKey
	for _, q := range recorded {
		if q.TargetDB == "" {
			q.TargetDB = defaultPartition
		}
		key := q.Key()
		if _, ok := pool[key]; !ok {
			order = append(order, key)
		}
		pool[key] = append(pool[key], q)
	}
	return pool, order, nil
}

// wireCounts renders a frequency table with the composite string keys used
// in recorded documents.
func wireCounts(table quota.Table) map[string]int {
	counts := make(map[string]int, len(table))
	for key, count := range table {
		counts[key.String()] = count
	}
	return counts
}
