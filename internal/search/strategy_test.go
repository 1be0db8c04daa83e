package search

import (
	"strings"
	"testing"
)

func Test_TradeStudy_ExpandQuery(t *testing.T) {
	t.Parallel()

	s := &TradeStudyStrategy{Alternatives: []string{"hydraulic", "electric"}}
	got := s.ExpandQuery("actuator trade study")

	if !strings.HasPrefix(got, "actuator trade study") {
		t.Errorf("expansion must preserve the original query, got %q", got)
	}
	if strings.Count(got, "trade study") != 1 {
		t.Errorf("terms already present must not be repeated, got %q", got)
	}
	for _, term := range []string{"comparison", "criteria", "hydraulic", "electric"} {
		if !strings.Contains(got, term) {
			t.Errorf("expansion missing %q in %q", term, got)
		}
	}
}

func Test_TradeStudy_RescoreBoostsAndCaps(t *testing.T) {
	t.Parallel()

	s := &TradeStudyStrategy{Keywords: []string{"cost", "mass", "reliability", "latency"}}
	results := []Result{
		{ChunkID: "none", Content: "no criteria mentioned", Score: 0.60},
		{ChunkID: "one", Content: "the cost driver", Score: 0.60},
		{ChunkID: "many", Content: "cost mass reliability latency all covered", Score: 0.85},
	}

	got := s.Rescore(results)

	byID := map[string]float64{}
	for _, r := range got {
		byID[r.ChunkID] = r.Score
	}
	if byID["none"] != 0.60 {
		t.Errorf("no keywords means no boost, got %f", byID["none"])
	}
	if byID["one"] != 0.70 {
		t.Errorf("one keyword boosts by 0.1, got %f", byID["one"])
	}
	// Four matches would be +0.4; the boost caps at +0.3 and the total at 1.0.
	if byID["many"] != 1.0 {
		t.Errorf("boost must cap, got %f", byID["many"])
	}
	if got[0].ChunkID != "many" {
		t.Errorf("rescore must re-sort by boosted score, got %v", got)
	}
}

func Test_TradeStudy_GroupByAlternative(t *testing.T) {
	t.Parallel()

	s := &TradeStudyStrategy{Alternatives: []string{"hydraulic", "electric"}}
	long := strings.Repeat("electric actuators trade slower response for lower mass. ", 8)
	results := []Result{
		{ChunkID: "h1", Content: "Hydraulic actuators deliver 95% duty cycle at high load.", Score: 0.9, DocumentTitle: "Actuation Handbook"},
		{ChunkID: "e1", Content: long, Score: 0.8, DocumentTitle: "Actuation Handbook"},
		{ChunkID: "x1", Content: "pneumatic option excluded early", Score: 0.7, DocumentTitle: "Actuation Handbook"},
	}

	grouped := s.Group(results)

	hyd := grouped["hydraulic"]
	if len(hyd) != 1 || hyd[0].ChunkID != "h1" {
		t.Fatalf("want h1 under hydraulic, got %v", hyd)
	}
	if hyd[0].Value != "95%" {
		t.Errorf("want first quantitative value 95%%, got %q", hyd[0].Value)
	}
	if hyd[0].Citation != "Actuation Handbook" {
		t.Errorf("unexpected citation %q", hyd[0].Citation)
	}

	ele := grouped["electric"]
	if len(ele) != 1 {
		t.Fatalf("want e1 under electric, got %v", ele)
	}
	if !strings.HasSuffix(ele[0].Excerpt, "...") || len([]rune(ele[0].Excerpt)) != excerptRunes+3 {
		t.Errorf("long content must truncate to %d runes with ellipsis, got %d runes",
			excerptRunes, len([]rune(ele[0].Excerpt)))
	}

	if _, ok := grouped["pneumatic"]; ok {
		t.Error("alternatives not configured must not appear")
	}
}

func Test_QuantitativeValueExtraction(t *testing.T) {
	t.Parallel()

	cases := []struct{ content, want string }{
		{"availability of 99.9% is required", "99.9%"},
		{"response within 250 ms worst case", "250 ms"},
		{"allow 4 hours for thermal soak", "4 hours"},
		{"no figures here", ""},
	}
	for _, tc := range cases {
		if got := quantitativePattern.FindString(tc.content); got != tc.want {
			t.Errorf("FindString(%q): want %q, got %q", tc.content, tc.want, got)
		}
	}
}
