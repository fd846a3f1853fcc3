package chunk

import "testing"

func TestHasEmbedding(t *testing.T) {
	c := &Chunk{}
	if c.HasEmbedding() {
		t.Fatalf("expected no embedding")
	}
	c.Embedding = make([]float32, 384)
	if !c.HasEmbedding() {
		t.Fatalf("expected embedding present")
	}
}

func TestMetaRoundTrip(t *testing.T) {
	c := &Chunk{}
	c.SetMeta(MetaPageNumber, 7)
	if got := c.MetaInt(MetaPageNumber); got != 7 {
		t.Fatalf("MetaInt = %d, want 7", got)
	}
	c.SetMeta(MetaLanguage, "en")
	if got := c.Meta(MetaLanguage); got != "en" {
		t.Fatalf("Meta = %q, want en", got)
	}
	if got := c.Meta("missing"); got != "" {
		t.Fatalf("Meta(missing) = %q, want empty", got)
	}
}

func TestSnippet(t *testing.T) {
	if got := Snippet("short", 10); got != "short" {
		t.Fatalf("Snippet short = %q", got)
	}
	long := "this is a long string that should be truncated"
	got := Snippet(long, 10)
	if got != "this is a …" {
		t.Fatalf("Snippet long = %q", got)
	}
}
