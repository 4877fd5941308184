package main

import (
	"slices"
	"testing"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"gpt-5-mini", []string{"gpt-5-mini"}},
		{" gpt-5-mini , gemini-2.5-flash ,", []string{"gpt-5-mini", "gemini-2.5-flash"}},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); !slices.Equal(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCheckTools(t *testing.T) {
	if err := checkTools([]string{"web_search", "code_interpreter", "*"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := checkTools([]string{"websearch"}); err == nil {
		t.Error("expected error for unknown tool")
	}
}
