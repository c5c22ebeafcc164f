package supervisor

import "testing"

func TestLineBufferEvictsOldest(t *testing.T) {
	b := NewLineBuffer(3)
	for _, s := range []string{"a", "b", "c", "d"} {
		b.Add("stdout", s)
	}
	if b.Len() != 3 {
		t.Fatalf("len = %d", b.Len())
	}
	got := b.Latest(0)
	if got[0].Text != "b" || got[2].Text != "d" || got[2].Seq != 4 {
		t.Fatalf("latest = %+v", got)
	}
	if two := b.Latest(2); len(two) != 2 || two[0].Text != "c" {
		t.Fatalf("latest(2) = %+v", two)
	}
}

func TestLineBufferSince(t *testing.T) {
	b := NewLineBuffer(0)
	b.Add("stdout", "one")
	second := b.Add("stderr", "two")
	b.Add("stdout", "three")

	got := b.Since(second.Seq - 1)
	if len(got) != 2 || got[0].Text != "two" || got[0].Stream != "stderr" {
		t.Fatalf("since = %+v", got)
	}
	if none := b.Since(100); len(none) != 0 {
		t.Fatalf("expected nothing newer, got %+v", none)
	}
}
