package gmail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/Veraticus/the-mail-must-flow/internal/mailtext"
	"github.com/Veraticus/the-mail-must-flow/internal/model"
	"github.com/Veraticus/the-mail-must-flow/internal/service"
)

// rawMessageFrom converts a full Gmail message into the provider-neutral
// shape used by ingestion.
func rawMessageFrom(msg *gmailapi.Message) model.RawMessage {
	raw := model.RawMessage{
		ProviderMessageID: msg.Id,
		ThreadID:          msg.ThreadId,
	}
	if msg.Payload == nil {
		return raw
	}

	raw.Subject = headerValue(msg.Payload.Headers, "Subject")
	raw.Sender = headerValue(msg.Payload.Headers, "From")
	raw.Body = extractBody(msg.Payload)

	if date := headerValue(msg.Payload.Headers, "Date"); date != "" {
		if t, err := mail.ParseDate(date); err == nil {
			raw.ReceivedAt = t
		}
	}
	if raw.ReceivedAt.IsZero() && msg.InternalDate > 0 {
		raw.ReceivedAt = time.UnixMilli(msg.InternalDate)
	}

	return raw
}

func headerValue(headers []*gmailapi.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// extractBody pulls the message text out of the payload, preferring a
// text/plain part and falling back to text/html.
func extractBody(payload *gmailapi.MessagePart) string {
	if len(payload.Parts) == 0 {
		if payload.Body != nil && payload.Body.Data != "" {
			return decodeBody(payload.Body.Data)
		}
		return ""
	}

	var html string
	for _, part := range payload.Parts {
		switch part.MimeType {
		case "text/plain":
			if part.Body != nil && part.Body.Data != "" {
				return decodeBody(part.Body.Data)
			}
		case "text/html":
			if html == "" && part.Body != nil && part.Body.Data != "" {
				html = decodeBody(part.Body.Data)
			}
		default:
			// Nested multipart (e.g. multipart/alternative inside
			// multipart/mixed).
			if nested := extractBody(part); nested != "" && html == "" {
				html = nested
			}
		}
	}
	return html
}

// decodeBody decodes Gmail's base64url body data, which arrives unpadded.
func decodeBody(data string) string {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(decoded)
}

// buildRawReply assembles a multipart/alternative MIME reply and encodes it
// the way the Gmail send API expects. The plain part comes first so clients
// that stop at the first alternative still get readable text.
func buildRawReply(reply service.Reply) string {
	formatted := mailtext.FormatReply(reply.Body)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", reply.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", reply.Subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n", writer.Boundary())
	msg.WriteString("\r\n")

	plainPart, _ := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {`text/plain; charset="UTF-8"`},
	})
	_, _ = plainPart.Write([]byte(formatted.Plain))

	htmlPart, _ := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {`text/html; charset="UTF-8"`},
	})
	_, _ = htmlPart.Write([]byte(formatted.HTML))

	_ = writer.Close()
	msg.Write(buf.Bytes())

	return base64.URLEncoding.EncodeToString(msg.Bytes())
}
