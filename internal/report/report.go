// Package report persists workload artifacts and distribution documents.
package report

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"shaper/internal/util"
	"shaper/internal/workload"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// Reporter writes run artifacts to disk.
type Reporter struct {
	OutputDir   string
	UseUUIDPath bool
	runSeq      int
}

// Run describes one artifact directory.
type Run struct {
	ID  string
	Dir string
}

// New creates a reporter that writes under outputDir.
func New(outputDir string) *Reporter {
	return &Reporter{OutputDir: outputDir}
}

// NewRun allocates a new run directory.
func (r *Reporter) NewRun() (Run, error) {
	r.runSeq++
	runID := uuid.New().String()
	if v7, err := uuid.NewV7(); err == nil {
		runID = v7.String()
	}
	runDir := fmt.Sprintf("run_%04d_%s", r.runSeq, runID)
	if r.UseUUIDPath {
		runDir = runID
	}
	dir := filepath.Join(r.OutputDir, runDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Run{}, err
	}
	return Run{ID: runID, Dir: dir}, nil
}

// WriteWorkload writes the workload artifact into the run directory.
func (r *Reporter) WriteWorkload(run Run, name string, art workload.Artifact) error {
	return r.writeJSON(run, name, art)
}

// DistributionDump is the per-run distribution document written next to a
// workload artifact.
type DistributionDump struct {
	TotalTemplates       int           `json:"total_templates"`
	UniqueTemplates      int           `json:"unique_templates"`
	TemplateDistribution OrderedCounts `json:"template_distribution"`
	Top20Distribution    OrderedCounts `json:"top_20_distribution"`
}

// NewDistributionDump builds the dump for a realized frequency table.
func NewDistributionDump(counts map[string]int) DistributionDump {
	total := 0
	for _, c := range counts {
		total += c
	}
	return DistributionDump{
		TotalTemplates:       total,
		UniqueTemplates:      len(counts),
		TemplateDistribution: OrderedCounts(counts),
		Top20Distribution:    OrderedCounts(counts).Top(20),
	}
}

// WriteDistribution writes a distribution dump into the run directory.
func (r *Reporter) WriteDistribution(run Run, name string, dump DistributionDump) error {
	return r.writeJSON(run, name, dump)
}

// WriteJSON writes an arbitrary document into the run directory.
func (r *Reporter) WriteJSON(run Run, name string, v any) error {
	return r.writeJSON(run, name, v)
}

func (r *Reporter) writeJSON(run Run, name string, v any) error {
	path := filepath.Join(run.Dir, name)
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(f, "report output")
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// OrderedCounts is a frequency table that marshals with entries ordered by
// descending count, ties by key, matching the recorded document layout.
type OrderedCounts map[string]int

// Top returns the n highest-count entries.
func (m OrderedCounts) Top(n int) OrderedCounts {
	keys := m.sortedKeys()
	if n > len(keys) {
		n = len(keys)
	}
	out := make(OrderedCounts, n)
	for _, k := range keys[:n] {
		out[k] = m[k]
	}
	return out
}

// MarshalJSON writes the table as an object ordered by descending count.
func (m OrderedCounts) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteString("{")
	for i, k := range m.sortedKeys() {
		if i > 0 {
			b.WriteString(",")
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		b.Write(keyJSON)
		fmt.Fprintf(&b, ":%d", m[k])
	}
	b.WriteString("}")
	return []byte(b.String()), nil
}

func (m OrderedCounts) sortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

const (
	// RunArchiveName is the compressed archive written by ArchiveRun.
	RunArchiveName = "workload.tar.zst"
	// RunArchiveCodec names the archive compression codec.
	RunArchiveCodec = "zstd"
)

// ArchiveRun creates a compressed archive of the run directory.
func (r *Reporter) ArchiveRun(run Run) (name string, codec string, err error) {
	archivePath := filepath.Join(run.Dir, RunArchiveName)
	if removeErr := os.Remove(archivePath); removeErr != nil && !os.IsNotExist(removeErr) {
		return "", "", removeErr
	}
	defer func() {
		if err != nil {
			_ = os.Remove(archivePath)
		}
	}()
	file, err := os.Create(archivePath)
	if err != nil {
		return "", "", err
	}
	defer util.CloseWithErr(file, "archive output")

	zw, err := zstd.NewWriter(file)
	if err != nil {
		return "", "", err
	}
	defer func() {
		if closeErr := zw.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	tw := tar.NewWriter(zw)
	defer func() {
		if closeErr := tw.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	walkErr := filepath.WalkDir(run.Dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || path == archivePath {
			return nil
		}
		rel, err := filepath.Rel(run.Dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		if _, err := io.Copy(tw, src); err != nil {
			util.CloseWithErr(src, "archive source")
			return err
		}
		util.CloseWithErr(src, "archive source")
		return nil
	})
	if walkErr != nil {
		return "", "", walkErr
	}
	return RunArchiveName, RunArchiveCodec, nil
}
