package rank

import (
	"errors"
	"math/rand"
	"testing"

	"shaper/internal/catalog"
)

func tpl(id, question string) catalog.Template {
	return catalog.Template{ID: id, Partition: "mimic_iii", QuestionPatterns: []string{question}}
}

func ids(templates []catalog.Template) []string {
	out := make([]string, len(templates))
	for i, t := range templates {
		out[i] = t.ID
	}
	return out
}

func TestOrderByCountKeepsCatalogOrder(t *testing.T) {
	population := []catalog.Template{tpl("1", "aaa"), tpl("2", "b"), tpl("3", "cc")}
	ordered, err := Order(population, ByCount, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("order by count: %v", err)
	}
	got := ids(ordered)
	want := []string{"1", "2", "3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order at %d: got %v, want %v", i, got, want)
		}
	}
}

func TestOrderByLengthIsStableAscending(t *testing.T) {
	population := []catalog.Template{
		tpl("1", "aaaa"),
		tpl("2", "bb"),
		tpl("3", "cc"),
		tpl("4", "d"),
	}
	ordered, err := Order(population, ByLength, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("order by length: %v", err)
	}
	got := ids(ordered)
	// Ties between "bb" and "cc" keep catalog order.
	want := []string{"4", "2", "3", "1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order at %d: got %v, want %v", i, got, want)
		}
	}
}

func TestOrderByRandomIsSeeded(t *testing.T) {
	population := []catalog.Template{tpl("1", "a"), tpl("2", "b"), tpl("3", "c"), tpl("4", "d"), tpl("5", "e")}
	first, err := Order(population, ByRandom, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("order by random: %v", err)
	}
	second, err := Order(population, ByRandom, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("order by random: %v", err)
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("same seed produced different orders: %v vs %v", ids(first), ids(second))
		}
	}
	seen := make(map[string]bool, len(first))
	for _, tplOut := range first {
		seen[tplOut.ID] = true
	}
	if len(seen) != len(population) {
		t.Fatalf("permutation lost templates: %v", ids(first))
	}
}

func TestOrderDoesNotMutateInput(t *testing.T) {
	population := []catalog.Template{tpl("1", "aaa"), tpl("2", "b")}
	if _, err := Order(population, ByLength, rand.New(rand.NewSource(1))); err != nil {
		t.Fatalf("order by length: %v", err)
	}
	if population[0].ID != "1" || population[1].ID != "2" {
		t.Fatalf("input mutated: %v", ids(population))
	}
}

func TestOrderEmptyPopulation(t *testing.T) {
	ordered, err := Order(nil, ByCount, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("empty population should not error: %v", err)
	}
	if len(ordered) != 0 {
		t.Fatalf("expected empty ordering, got %d templates", len(ordered))
	}
}

func TestOrderUnsupportedCriterion(t *testing.T) {
	_, err := Order(nil, Criterion("by_vibes"), rand.New(rand.NewSource(1)))
	if !errors.Is(err, ErrUnsupportedCriterion) {
		t.Fatalf("expected ErrUnsupportedCriterion, got %v", err)
	}
}
