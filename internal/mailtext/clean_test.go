package mailtext

import (
	"strings"
	"testing"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "strips html tags",
			body: "<div>Hello <b>there</b></div>",
			want: "Hello there",
		},
		{
			name: "drops quoted history",
			body: "Thanks for the update.\n> On Monday you wrote:\n> old text",
			want: "Thanks for the update.",
		},
		{
			name: "drops signature marker and everything after",
			body: "See you tomorrow.\n-- \nJane Doe\nVP of Everything",
			want: "See you tomorrow.",
		},
		{
			name: "drops sent-from footer",
			body: "Quick note\nSent from my iPhone",
			want: "Quick note",
		},
		{
			name: "collapses blank runs and space runs",
			body: "First   line\n\n\n\nSecond line",
			want: "First line\n\nSecond line",
		},
		{
			name: "replaces inline image markers",
			body: "Chart attached [image: revenue-q3.png] as promised",
			want: "Chart attached [Image] as promised",
		},
		{
			name: "empty body stays empty",
			body: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.body); got != tt.want {
				t.Errorf("Clean() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	short := "a short body"
	if got := Preview(short); got != short {
		t.Errorf("short body should be unchanged, got %q", got)
	}

	long := strings.Repeat("x", PreviewLength*2)
	got := Preview(long)
	if len([]rune(got)) != PreviewLength {
		t.Errorf("expected preview of %d runes, got %d", PreviewLength, len([]rune(got)))
	}
	if !strings.HasPrefix(long, got) {
		t.Error("preview must be a prefix of the full body")
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("y", 100)
	got := Truncate(long, 50)
	if !strings.HasPrefix(got, long[:50]) {
		t.Error("truncated body must start with the original prefix")
	}
	if !strings.Contains(got, "[Email truncated due to length]") {
		t.Error("truncation must be marked")
	}

	if got := Truncate("short", 50); got != "short" {
		t.Errorf("short body should be unchanged, got %q", got)
	}
}

func TestFormatReply(t *testing.T) {
	reply := FormatReply("Hello Jane,\r\n\r\nThanks for reaching out.\nMore soon.\r\n\r\nBest,\nSam")

	if strings.Contains(reply.Plain, "\r") {
		t.Error("plain part must use unix line endings")
	}
	if !strings.Contains(reply.HTML, "<p>Hello Jane,</p>") {
		t.Errorf("expected paragraph markup, got %q", reply.HTML)
	}
	if !strings.Contains(reply.HTML, "Thanks for reaching out.<br>More soon.") {
		t.Errorf("expected line breaks inside paragraph, got %q", reply.HTML)
	}
}

func TestReplySubject(t *testing.T) {
	if got := ReplySubject("Budget question"); got != "Re: Budget question" {
		t.Errorf("ReplySubject() = %q", got)
	}
	if got := ReplySubject("Re: Budget question"); got != "Re: Budget question" {
		t.Errorf("existing prefix should not stack, got %q", got)
	}
	if got := ReplySubject("RE: Budget question"); got != "RE: Budget question" {
		t.Errorf("case-insensitive prefix should not stack, got %q", got)
	}
}
