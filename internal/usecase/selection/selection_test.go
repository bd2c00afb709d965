package selection_test

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/heitormarin83/consultancy-news-agent/internal/domain/entity"
	"github.com/heitormarin83/consultancy-news-agent/internal/usecase/selection"
)

func art(title, source, country string, p entity.Priority, score int) entity.Article {
	return entity.Article{Title: title, SourceID: source, Country: country, Priority: p, Score: score}
}

func titles(as []entity.Article) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.Title
	}
	return out
}

/* ──────────────────────────────── 1. Ordering ──────────────────────────────── */

func TestSelect_PriorityThenScore(t *testing.T) {
	in := []entity.Article{
		art("low-99", "s1", "UK", entity.PriorityLow, 99),
		art("high-71", "s2", "Brazil", entity.PriorityHigh, 71),
		art("medium-90", "s3", "Germany", entity.PriorityMedium, 90),
		art("high-88", "s4", "France", entity.PriorityHigh, 88),
	}

	got := titles(selection.Select(in, selection.DefaultLimits()))
	want := []string{"high-88", "high-71", "medium-90", "low-99"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestSelect_TiesKeepInputOrder(t *testing.T) {
	in := []entity.Article{
		art("first", "s1", "UK", entity.PriorityHigh, 80),
		art("second", "s2", "US", entity.PriorityHigh, 80),
		art("third", "s3", "BR", entity.PriorityHigh, 80),
	}
	got := titles(selection.Select(in, selection.DefaultLimits()))
	if diff := cmp.Diff([]string{"first", "second", "third"}, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

/* ──────────────────────────────── 2. Caps ──────────────────────────────── */

// Five Brazilian items from one source scored 95..75 with caps 20/2/3 and
// two German items from another: only the top two Brazilian items survive
// the per-source cap.
func TestSelect_PerSourceCap(t *testing.T) {
	var in []entity.Article
	for i, score := range []int{95, 90, 85, 80, 75} {
		in = append(in, art(fmt.Sprintf("br-%d", i), "valor", "Brazil", entity.PriorityHigh, score))
	}
	in = append(in,
		art("de-0", "handelsblatt", "Germany", entity.PriorityMedium, 88),
		art("de-1", "handelsblatt", "Germany", entity.PriorityMedium, 86))

	got := titles(selection.Select(in, selection.DefaultLimits()))
	want := []string{"br-0", "br-1", "de-0", "de-1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

// Five high-priority items from one source and five low-priority items
// from distinct sources, capped at two per source and ten overall.
func TestSelect_RepeatedSourceAmongDistinctOnes(t *testing.T) {
	var in []entity.Article
	for i, score := range []int{95, 92, 90, 85, 80} {
		in = append(in, art(fmt.Sprintf("mck-%d", i), "mckinsey", "Global", entity.PriorityHigh, score))
	}
	for i, score := range []int{72, 88, 79, 91, 75} {
		in = append(in, art(fmt.Sprintf("low-%d", i), fmt.Sprintf("blog-%d", i), fmt.Sprintf("country-%d", i), entity.PriorityLow, score))
	}

	got := selection.Select(in, selection.Limits{MaxTotal: 10, MaxPerSource: 2, MaxPerCountry: 3})

	want := []string{"mck-0", "mck-1", "low-3", "low-1", "low-2", "low-4", "low-0"}
	if diff := cmp.Diff(want, titles(got)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	repeated := 0
	for _, a := range got {
		if a.SourceID == "mckinsey" {
			repeated++
		}
	}
	if repeated != 2 {
		t.Fatalf("repeated source emitted %d items, want 2", repeated)
	}
}

func TestSelect_PerCountryCap(t *testing.T) {
	in := []entity.Article{
		art("uk-a1", "a", "UK", entity.PriorityHigh, 99),
		art("uk-b1", "b", "UK", entity.PriorityHigh, 98),
		art("uk-c1", "c", "UK", entity.PriorityHigh, 97),
		art("uk-d1", "d", "UK", entity.PriorityHigh, 96),
		art("fr-e1", "e", "France", entity.PriorityLow, 70),
	}
	got := titles(selection.Select(in, selection.DefaultLimits()))
	want := []string{"uk-a1", "uk-b1", "uk-c1", "fr-e1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestSelect_TotalCap(t *testing.T) {
	var in []entity.Article
	for i := 0; i < 50; i++ {
		in = append(in, art(fmt.Sprintf("a%d", i), fmt.Sprintf("s%d", i), fmt.Sprintf("c%d", i), entity.PriorityMedium, 80))
	}
	got := selection.Select(in, selection.DefaultLimits())
	if len(got) != 20 {
		t.Fatalf("len = %d, want 20", len(got))
	}
}

/* ──────────────────────────────── 3. Large input ─────────────────────────────── */

func TestSelect_LargeInputRespectsCapsAndOrder(t *testing.T) {
	var in []entity.Article
	priorities := []entity.Priority{entity.PriorityHigh, entity.PriorityMedium, entity.PriorityLow}
	for i := 0; i < 120; i++ {
		in = append(in, art(
			fmt.Sprintf("t%d", i),
			fmt.Sprintf("src%d", i%9),
			fmt.Sprintf("country%d", i%5),
			priorities[i%3],
			70+(i*7)%31,
		))
	}
	limits := selection.Limits{MaxTotal: 12, MaxPerSource: 2, MaxPerCountry: 3}
	got := selection.Select(in, limits)

	if len(got) > limits.MaxTotal {
		t.Fatalf("len = %d exceeds MaxTotal", len(got))
	}
	perSource, perCountry := map[string]int{}, map[string]int{}
	for i, a := range got {
		perSource[a.SourceID]++
		perCountry[a.Country]++
		if perSource[a.SourceID] > limits.MaxPerSource {
			t.Fatalf("source %s over cap", a.SourceID)
		}
		if perCountry[a.Country] > limits.MaxPerCountry {
			t.Fatalf("country %s over cap", a.Country)
		}
		if i == 0 {
			continue
		}
		prev := got[i-1]
		if prev.Priority.Rank() < a.Priority.Rank() ||
			(prev.Priority.Rank() == a.Priority.Rank() && prev.Score < a.Score) {
			t.Fatalf("order broken at %d: %+v before %+v", i, prev, a)
		}
	}
}

func TestSelect_DoesNotMutateInput(t *testing.T) {
	in := []entity.Article{
		art("b", "s1", "UK", entity.PriorityLow, 70),
		art("a", "s2", "UK", entity.PriorityHigh, 90),
	}
	before := append([]entity.Article(nil), in...)

	_ = selection.Select(in, selection.DefaultLimits())

	if diff := cmp.Diff(before, in); diff != "" {
		t.Fatalf("input mutated (-before +after):\n%s", diff)
	}
}

func TestSelect_NonPositiveLimits(t *testing.T) {
	in := []entity.Article{art("a", "s", "UK", entity.PriorityHigh, 90)}
	for _, l := range []selection.Limits{
		{MaxTotal: 0, MaxPerSource: 2, MaxPerCountry: 3},
		{MaxTotal: 20, MaxPerSource: -1, MaxPerCountry: 3},
		{MaxTotal: 20, MaxPerSource: 2, MaxPerCountry: 0},
	} {
		if got := selection.Select(in, l); len(got) != 0 {
			t.Fatalf("limits %+v selected %d items", l, len(got))
		}
	}
}

func TestSelect_Empty(t *testing.T) {
	if got := selection.Select(nil, selection.DefaultLimits()); len(got) != 0 {
		t.Fatalf("got %d items from empty input", len(got))
	}
}
