package workload

import (
	"math/rand"
	"testing"

	"shaper/internal/catalog"
)

func queries(n int) []catalog.Instance {
	out := make([]catalog.Instance, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, catalog.Instance{
			ID:         (i + 1) * 100,
			TemplateID: "t",
			Question:   string(rune('a' + i)),
			TargetDB:   "db",
		})
	}
	return out
}

func TestReindexAssignsSequentialIDs(t *testing.T) {
	qs := queries(4)
	Reindex(qs)
	for i, q := range qs {
		if q.ID != i+1 {
			t.Fatalf("id at %d is %d, want %d", i, q.ID, i+1)
		}
	}
}

func TestShuffleIsSeededAndReindexes(t *testing.T) {
	first := queries(20)
	Shuffle(first, rand.New(rand.NewSource(42)))
	second := queries(20)
	Shuffle(second, rand.New(rand.NewSource(42)))
	for i := range first {
		if first[i].Question != second[i].Question {
			t.Fatalf("same seed produced different orders at %d", i)
		}
		if first[i].ID != i+1 {
			t.Fatalf("id at %d is %d after shuffle, want %d", i, first[i].ID, i+1)
		}
	}
	seen := make(map[string]bool)
	for _, q := range first {
		seen[q.Question] = true
	}
	if len(seen) != 20 {
		t.Fatalf("shuffle lost queries: %d distinct of 20", len(seen))
	}
}

func TestMaskingHistogram(t *testing.T) {
	templates := []catalog.Template{
		{ID: "1", QuestionPatterns: []string{"count of [m2_0] in [m2_1]"}, Literals: []catalog.LiteralSlot{{}, {}}},
		{ID: "2", QuestionPatterns: []string{"show [m2_0]"}, Literals: []catalog.LiteralSlot{{}}},
		{ID: "3", QuestionPatterns: []string{"no masks here"}},
	}
	hist := MaskingHistogram(templates)
	if hist[2] != 1 || hist[1] != 1 || hist[0] != 1 {
		t.Fatalf("unexpected histogram: %v", hist)
	}
	if MaskingHistogram(nil) != nil {
		t.Fatalf("expected nil histogram for empty input")
	}
}

func TestCheckNoReuse(t *testing.T) {
	clean := []catalog.Instance{
		{ID: 1, TemplateID: "t", TargetDB: "db"},
		{ID: 2, TemplateID: "t", TargetDB: "db"},
		{ID: 1, TemplateID: "t", TargetDB: "other"},
	}
	if err := CheckNoReuse(clean); err != nil {
		t.Fatalf("clean list reported reuse: %v", err)
	}
	dirty := append(clean, catalog.Instance{ID: 2, TemplateID: "t", TargetDB: "db"})
	if err := CheckNoReuse(dirty); err == nil {
		t.Fatalf("expected reuse error")
	}
}
