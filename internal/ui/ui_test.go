package ui

import (
	"strings"
	"testing"
)

func TestRender_NoColor(t *testing.T) {
	SetColor(false)
	defer SetColor(false)

	for _, got := range []string{
		RenderAccent("a"), RenderMuted("a"), RenderWarn("a"),
		RenderSource("a"), RenderSeverity("high", "a"),
	} {
		if got != "a" {
			t.Errorf("expected plain text, got %q", got)
		}
	}
}

func TestRender_Color(t *testing.T) {
	SetColor(true)
	defer SetColor(false)

	tests := []struct {
		got  string
		code string
	}{
		{RenderSource("memory"), "114"},
		{RenderSource("model"), "74"},
		{RenderSource("degraded"), "214"},
		{RenderSeverity("high", "x"), "203"},
		{RenderSeverity("low", "x"), "245"},
		{RenderSeverity("medium", "x"), "214"},
	}
	for _, tc := range tests {
		if !strings.HasPrefix(tc.got, "\x1b[38;5;"+tc.code+"m") || !strings.HasSuffix(tc.got, "\x1b[0m") {
			t.Errorf("%q: want color %s", tc.got, tc.code)
		}
	}

	if RenderAccent("") != "" {
		t.Error("empty strings stay empty")
	}
}

func TestShouldUseColor_Env(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if ShouldUseColor() {
		t.Error("NO_COLOR must disable color")
	}

	t.Setenv("NO_COLOR", "")
	t.Setenv("CLICOLOR_FORCE", "1")
	if !ShouldUseColor() {
		t.Error("CLICOLOR_FORCE must enable color")
	}

	t.Setenv("CLICOLOR_FORCE", "")
	t.Setenv("CLICOLOR", "0")
	if ShouldUseColor() {
		t.Error("CLICOLOR=0 must disable color")
	}
}

func TestWidth_Fallback(t *testing.T) {
	// go test does not attach stdout to a terminal.
	if w := Width(80); w <= 0 {
		t.Fatalf("Width = %d", w)
	}
}
