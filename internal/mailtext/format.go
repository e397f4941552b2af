package mailtext

import (
	"html"
	"strings"
)

// FormattedReply carries the plain and HTML alternatives of one outgoing body.
type FormattedReply struct {
	Plain string
	HTML  string
}

// FormatReply prepares a reply body for sending as multipart/alternative.
// Gmail renders the plain part in most clients, so it is normalized first and
// the HTML part is derived from it.
func FormatReply(body string) FormattedReply {
	plain := strings.ReplaceAll(body, "\r\n", "\n")
	plain = blankRunPattern.ReplaceAllString(plain, "\n\n")
	plain = strings.TrimSpace(plain)

	paragraphs := strings.Split(plain, "\n\n")
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, p := range paragraphs {
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(p), "\n", "<br>"))
		b.WriteString("</p>")
	}
	b.WriteString("</body></html>")

	return FormattedReply{
		Plain: plain,
		HTML:  b.String(),
	}
}

// ReplySubject prefixes a subject for a reply, avoiding stacked prefixes.
func ReplySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}
