// Package mailtext normalizes email bodies for analysis and formats outgoing
// replies for transport.
package mailtext

import (
	"regexp"
	"strings"
)

var (
	tagPattern       = regexp.MustCompile(`(?s)<[^>]*>`)
	imagePattern     = regexp.MustCompile(`(?i)\[image:[^\]]*\]`)
	blankRunPattern  = regexp.MustCompile(`\n{3,}`)
	spaceRunPattern  = regexp.MustCompile(` {2,}`)
	signaturePattern = regexp.MustCompile(`(?m)^(--\s*|Sent from .*|Get Outlook .*)$`)
)

// Clean strips HTML, quoted history, signature markers, and whitespace noise
// from an email body. The result is what the analysis pipeline sees.
func Clean(body string) string {
	if body == "" {
		return ""
	}

	body = tagPattern.ReplaceAllString(body, "")
	body = imagePattern.ReplaceAllString(body, "[Image]")

	// Everything below a signature marker is signature.
	if loc := signaturePattern.FindStringIndex(body); loc != nil {
		body = body[:loc[0]]
	}

	lines := strings.Split(body, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		// Quoted reply history
		if strings.HasPrefix(line, ">") {
			continue
		}
		kept = append(kept, line)
	}
	body = strings.Join(kept, "\n")

	body = blankRunPattern.ReplaceAllString(body, "\n\n")
	body = spaceRunPattern.ReplaceAllString(body, " ")

	return strings.TrimSpace(body)
}

// PreviewLength bounds how much of a body the preview carries.
const PreviewLength = 200

// Preview returns a bounded prefix of the body suitable for list views. The
// result is always a true prefix of the input so it can be compared against
// the full body.
func Preview(body string) string {
	runes := []rune(body)
	if len(runes) <= PreviewLength {
		return body
	}
	return string(runes[:PreviewLength])
}

// Truncate caps a body for prompting, marking the cut so the model knows the
// text is incomplete.
func Truncate(body string, max int) string {
	if len(body) <= max {
		return body
	}
	return body[:max] + "\n\n[Email truncated due to length]"
}
