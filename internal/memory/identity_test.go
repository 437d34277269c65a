package memory

import "testing"

func TestDeriveThreadIDDeterministic(t *testing.T) {
	a := DeriveThreadID("chan-1", "guild-1")
	b := DeriveThreadID("chan-1", "guild-1")
	if a != b {
		t.Errorf("expected identical IDs, got %q and %q", a, b)
	}
}

func TestDeriveThreadIDNamespaces(t *testing.T) {
	dm := DeriveThreadID("123", "")
	scoped := DeriveThreadID("123", "123")
	if dm == scoped {
		t.Errorf("private and scoped conversations with the same raw IDs must not collide: %q", dm)
	}

	// Different guilds never share a thread for the same channel ID
	g1 := DeriveThreadID("chan", "g1")
	g2 := DeriveThreadID("chan", "g2")
	if g1 == g2 {
		t.Errorf("expected distinct IDs per guild, got %q", g1)
	}
}
