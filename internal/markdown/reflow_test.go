package markdown

import "testing"

func TestReflow(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty",
			input: "",
			want:  "",
		},
		{
			name:  "single line",
			input: "Just one line.",
			want:  "Just one line.",
		},
		{
			name:  "joins wrapped paragraph",
			input: "The fog rolled\nin off the bay\nbefore dawn.",
			want:  "The fog rolled in off the bay before dawn.",
		},
		{
			name:  "keeps paragraph separators",
			input: "First para\nwraps here.\n\nSecond para\nwraps too.\n",
			want:  "First para wraps here.\n\nSecond para wraps too.\n",
		},
		{
			name:  "collapses trailing spaces before a soft break",
			input: "word \nnext",
			want:  "word next",
		},
		{
			name:  "fenced code untouched",
			input: "Intro line\ncontinues.\n\n```\nline one\nline two\n```\n",
			want:  "Intro line continues.\n\n```\nline one\nline two\n```\n",
		},
		{
			name:  "hard break with two spaces kept",
			input: "Roses are red,  \nviolets are blue.",
			want:  "Roses are red,  \nviolets are blue.",
		},
		{
			name:  "hard break with backslash kept",
			input: "Line\\\nbreak",
			want:  "Line\\\nbreak",
		},
		{
			name:  "heading untouched",
			input: "# Chapter One\n\nIt was\nlate.",
			want:  "# Chapter One\n\nIt was late.",
		},
		{
			name:  "list items stay separate",
			input: "- first\n- second\n",
			want:  "- first\n- second\n",
		},
		{
			name:  "wrapped list item joined",
			input: "- a long item\n  that wraps\n- short\n",
			want:  "- a long item that wraps\n- short\n",
		},
		{
			name:  "table untouched",
			input: "| a | b |\n|---|---|\n| 1 | 2 |\n",
			want:  "| a | b |\n|---|---|\n| 1 | 2 |\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reflow(tt.input); got != tt.want {
				t.Errorf("Reflow() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReflowIsIdempotent(t *testing.T) {
	input := "One\ntwo\n\nThree\nfour\n\n    indented code\n    stays\n"
	once := Reflow(input)
	if twice := Reflow(once); twice != once {
		t.Errorf("Reflow(Reflow(x)) = %q, want %q", twice, once)
	}
}
