package ui

import "testing"

func TestThemeNames(t *testing.T) {
	names := ThemeNames()
	if len(names) != 3 {
		t.Fatalf("ThemeNames() returned %d names, want 3", len(names))
	}
	if names[0] != "Nightfox" {
		t.Fatalf("ThemeNames()[0] = %q, want Nightfox", names[0])
	}
}

func TestNextTheme(t *testing.T) {
	if got := NextTheme("Nightfox"); got != "Kanagawa" {
		t.Fatalf("NextTheme(Nightfox) = %q, want Kanagawa", got)
	}
	if got := NextTheme("Slate"); got != "Nightfox" {
		t.Fatalf("NextTheme(Slate) = %q, want Nightfox", got)
	}
	if got := NextTheme("Unknown"); got != "Nightfox" {
		t.Fatalf("NextTheme(Unknown) = %q, want Nightfox", got)
	}
}

func TestGetTheme_FallsBackToNightfox(t *testing.T) {
	if got := GetTheme("Unknown").Name; got != "Nightfox" {
		t.Fatalf("GetTheme(Unknown).Name = %q, want Nightfox", got)
	}
}

func TestThemesColorEveryStatusClass(t *testing.T) {
	for _, name := range ThemeNames() {
		th := GetTheme(name)
		for _, class := range []statusClass{statusFinished, statusRunning, statusNeutral} {
			if th.StatusColors[class] == "" {
				t.Fatalf("theme %s has no color for %s", name, class)
			}
		}
	}
}
