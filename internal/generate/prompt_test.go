package generate

import (
	"strings"
	"testing"
)

func TestBuildTablePrompt(t *testing.T) {
	p := BuildTablePrompt("| a |\n| --- |\n| {{X}} |\n", []string{"X", "Y"})
	if !strings.HasPrefix(p, TablePrompt) {
		t.Error("expected prompt to start with the table instructions")
	}
	if !strings.Contains(p, "Tags: X, Y\n") {
		t.Errorf("expected tag list in prompt, got %q", p)
	}
	if !strings.HasSuffix(p, "| {{X}} |\n") {
		t.Error("expected markdown grid at the end of the prompt")
	}
}

func TestBuildDocumentPrompt_RespectsBudget(t *testing.T) {
	long := strings.Repeat("word ", 5000)
	p := BuildDocumentPrompt(long, []string{"ClientName"}, 100)
	if !strings.Contains(p, "Placeholder keys: ClientName") {
		t.Error("expected placeholder keys in prompt")
	}
	body := p[strings.LastIndex(p, "---\n")+4:]
	if n := len(strings.Fields(body)); n > 100 {
		t.Errorf("expected document text cut to the budget, got %d words", n)
	}
}

func TestBuildMappingPrompt(t *testing.T) {
	p := BuildMappingPrompt(`{"id":"root"}`)
	if !strings.HasSuffix(p, `{"id":"root"}`) {
		t.Errorf("expected schema json at end, got %q", p)
	}
}
