package checksum

import "testing"

func TestSnapshot_Deterministic(t *testing.T) {
	a := Snapshot("Title", "Body", []string{"x", "y"})
	b := Snapshot("Title", "Body", []string{"x", "y"})
	if a != b {
		t.Errorf("same input produced %q and %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(a))
	}
}

func TestSnapshot_FieldBoundaries(t *testing.T) {
	// Content shifted across field boundaries must not collide.
	if Snapshot("ab", "c", nil) == Snapshot("a", "bc", nil) {
		t.Error("title/body boundary collision")
	}
	if Snapshot("t", "b", []string{"xy"}) == Snapshot("t", "b", []string{"x", "y"}) {
		t.Error("tag boundary collision")
	}
}

func TestSnapshot_TagsChangeDigest(t *testing.T) {
	if Snapshot("t", "b", nil) == Snapshot("t", "b", []string{"tag"}) {
		t.Error("tags ignored by digest")
	}
}
