package normalize

import "testing"

func TestQuery_LowercasesAndStripsPunctuation(t *testing.T) {
	got := Query("How do I implement Async I/O in Rust?!")
	want := "implement async o rust"
	if got != want {
		t.Fatalf("Query() = %q, want %q", got, want)
	}
}

func TestQuery_PreservesWordOrder(t *testing.T) {
	rust := Query("rust async patterns")
	python := Query("python async patterns")
	if rust == python {
		t.Fatalf("expected distinct normalized queries, got %q for both", rust)
	}
}

func TestQuery_AppliesSynonymTable(t *testing.T) {
	got := Query("asynchronous programming in go")
	want := "async program go"
	if got != want {
		t.Fatalf("Query() = %q, want %q", got, want)
	}
}

func TestQuery_Idempotent(t *testing.T) {
	q := "How should I configure Asyncio?"
	first := Query(q)
	second := Query(first)
	if first != second {
		t.Fatalf("Query is not idempotent: %q != %q", first, second)
	}
}

func TestConfidenceBand_Thresholds(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0.0, "low"}, {0.29, "low"},
		{0.3, "medium"}, {0.59, "medium"},
		{0.6, "high"}, {0.79, "high"},
		{0.8, "very_high"}, {1.0, "very_high"},
	}
	for _, c := range cases {
		if got := ConfidenceBand(c.in); got != c.want {
			t.Errorf("ConfidenceBand(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestProcessingTimeCategory_Thresholds(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "fast"}, {99, "fast"},
		{100, "medium"}, {499, "medium"},
		{500, "slow"}, {1999, "slow"},
		{2000, "very_slow"}, {10000, "very_slow"},
	}
	for _, c := range cases {
		if got := ProcessingTimeCategory(c.in); got != c.want {
			t.Errorf("ProcessingTimeCategory(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}
