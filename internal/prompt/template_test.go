package prompt

import (
	"slices"
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     map[string]string
		want     string
	}{
		{
			name:     "plain variables",
			template: "Hello {{name}}, you have {{{count}}} files.",
			vars:     map[string]string{"name": "Ada", "count": "2"},
			want:     "Hello Ada, you have 2 files.",
		},
		{
			name:     "section kept",
			template: "{{#if summary}}\nSummary: {{summary}}\n{{/if}}\nQ: {{q}}",
			vars:     map[string]string{"summary": "short", "q": "why?"},
			want:     "Summary: short\nQ: why?",
		},
		{
			name:     "section dropped when empty",
			template: "{{#if summary}}\nSummary: {{summary}}\n{{/if}}\nQ: {{q}}",
			vars:     map[string]string{"summary": "  ", "q": "why?"},
			want:     "Q: why?",
		},
		{
			name:     "section variable optional",
			template: "{{#if summary}}\nSummary: {{summary}}\n{{/if}}\n\n\n\nQ: {{q}}",
			vars:     map[string]string{"q": "why?"},
			want:     "Q: why?",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.template, tt.vars)
			if err != nil {
				t.Fatalf("Render() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderMissing(t *testing.T) {
	_, err := Render("{{a}} and {{b}}", map[string]string{"a": "x"})
	if err == nil || !strings.Contains(err.Error(), "b") {
		t.Fatalf("Render() error = %v, want missing b", err)
	}
}

func TestExtractVariables(t *testing.T) {
	got := ExtractVariables("{{a}} {{{b}}} {{a}} {{#if c}}{{c}}{{/if}}")
	if !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("ExtractVariables() = %v", got)
	}
}

func TestChatTurn(t *testing.T) {
	with := MustRender(ChatTurn, map[string]string{"fileSummary": "A report on rainfall.", "message": "What does it say?"})
	if !strings.Contains(with, "A report on rainfall.") || !strings.HasSuffix(with, "What does it say?") {
		t.Errorf("ChatTurn with file = %q", with)
	}

	without := MustRender(ChatTurn, map[string]string{"message": "Hi"})
	if without != "Hi" {
		t.Errorf("ChatTurn without file = %q, want Hi", without)
	}
}

func TestChatTurnKeepsMessageFormatting(t *testing.T) {
	message := "Why does this fail?\n\n\n\n```go\nfunc main() {\n\n\n\tpanic(1)\n}\n```\n  "
	tests := map[string]map[string]string{
		"without file": {"message": message},
		"with file":    {"fileSummary": "Notes.\n\n\n\nMore notes.", "message": message},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			got := MustRender(ChatTurn, vars)
			if !strings.HasSuffix(got, message) {
				t.Errorf("ChatTurn = %q, want message %q verbatim at the end", got, message)
			}
			if s := vars["fileSummary"]; s != "" && !strings.Contains(got, s) {
				t.Errorf("ChatTurn = %q, want summary verbatim", got)
			}
		})
	}
}

func TestRenderCollapsesEmptyVariableLines(t *testing.T) {
	got, err := Render("A\n{{x}}\n\n{{y}}\nB", map[string]string{"x": "", "y": ""})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if got != "A\n\nB" {
		t.Errorf("Render() = %q, want %q", got, "A\n\nB")
	}
}

func TestSummarizeDocumentLanguage(t *testing.T) {
	out := MustRender(SummarizeDocument, map[string]string{"text": "Hola mundo", "languageName": "Spanish"})
	if !strings.Contains(out, "write the summary in Spanish") {
		t.Errorf("prompt = %q", out)
	}
	if strings.Contains(out, "Title:") || strings.Contains(out, "OCR") {
		t.Errorf("optional sections rendered: %q", out)
	}
}
