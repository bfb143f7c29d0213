package services

import (
	"encoding/base64"
	"net/mail"
	"strings"
	"time"

	"schoolbox-be/internal/models"
	"schoolbox-be/internal/utils"

	"google.golang.org/api/gmail/v1"
)

const snippetLength = 150

// ParseMessage normalizes a raw provider message into the canonical Email
// record. It performs no I/O: everything is derived from the MIME tree the
// provider already returned.
func ParseMessage(msg *gmail.Message) *models.Email {
	headers := headerMap(msg.Payload)

	receivedAt := time.Now()
	if msg.InternalDate > 0 {
		receivedAt = time.Unix(msg.InternalDate/1000, (msg.InternalDate%1000)*1000000)
	}
	if d, err := mail.ParseDate(header(headers, "Date")); err == nil {
		receivedAt = d
	}

	text, html := extractBodies(msg.Payload)
	text = utils.ToValidUTF8(text)
	html = utils.ToValidUTF8(html)

	// A pure-HTML message still needs a text body for prompts and snippets.
	if text == "" && html != "" {
		text = utils.SanitizeHTML(html)
	}

	snippet := utils.ToValidUTF8(msg.Snippet)
	if snippet == "" {
		snippet = utils.SnippetOf(text, snippetLength)
	}

	email := &models.Email{
		MessageID:  msg.Id,
		ThreadID:   msg.ThreadId,
		From:       ParseAddress(utils.ToValidUTF8(header(headers, "From"))),
		To:         ParseAddressList(utils.ToValidUTF8(header(headers, "To"))),
		Cc:         ParseAddressList(utils.ToValidUTF8(header(headers, "Cc"))),
		Bcc:        ParseAddressList(utils.ToValidUTF8(header(headers, "Bcc"))),
		Subject:    utils.ToValidUTF8(header(headers, "Subject")),
		Body:       models.EmailBody{Text: text, HTML: html},
		Snippet:    snippet,
		ReceivedAt: receivedAt,

		Attachments: collectAttachments(msg.Payload),

		AIProcessing: models.AIProcessing{
			Category:          models.CategoryUnclassified,
			Priority:          models.PriorityNormal,
			Sentiment:         models.SentimentNeutral,
			ProcessingVersion: processingVersion,
		},
		Response: models.ResponseInfo{Status: models.ResponseNotRequired},
	}

	return email
}

// headerMap folds header names to lower case; RFC 5322 header matching is
// case-insensitive.
func headerMap(part *gmail.MessagePart) map[string]string {
	m := make(map[string]string)
	if part == nil {
		return m
	}
	for _, h := range part.Headers {
		key := strings.ToLower(h.Name)
		if _, exists := m[key]; !exists {
			m[key] = h.Value
		}
	}
	return m
}

func header(m map[string]string, name string) string {
	return m[strings.ToLower(name)]
}

// ParseAddress accepts `"Display Name" <addr@host>` or a bare address.
// Unparsable strings degrade to {Email: raw} instead of failing the message.
func ParseAddress(raw string) models.EmailAddress {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.EmailAddress{}
	}

	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return models.EmailAddress{Email: raw}
	}
	return models.EmailAddress{Name: addr.Name, Email: addr.Address}
}

func ParseAddressList(raw string) []models.EmailAddress {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	addrs, err := mail.ParseAddressList(raw)
	if err != nil {
		// Degrade per-entry rather than losing the whole list.
		var result []models.EmailAddress
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, ParseAddress(part))
			}
		}
		return result
	}

	result := make([]models.EmailAddress, 0, len(addrs))
	for _, a := range addrs {
		result = append(result, models.EmailAddress{Name: a.Name, Email: a.Address})
	}
	return result
}

// extractBodies walks the MIME tree recursively and concatenates all
// text/plain parts and all text/html parts separately, preserving order.
func extractBodies(part *gmail.MessagePart) (text, html string) {
	if part == nil {
		return "", ""
	}

	// Attachments can be text/plain too; skip anything named as a file.
	if part.Filename == "" && part.Body != nil && part.Body.Data != "" {
		data, err := decodeBase64URL(part.Body.Data)
		if err == nil {
			switch {
			case strings.HasPrefix(part.MimeType, "text/plain"):
				text += string(data)
			case strings.HasPrefix(part.MimeType, "text/html"):
				html += string(data)
			}
		}
	}

	for _, p := range part.Parts {
		t, h := extractBodies(p)
		text += t
		html += h
	}

	return text, html
}

// decodeBase64URL tries raw (unpadded) base64url first, then padded.
func decodeBase64URL(data string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(data)
	if err == nil {
		return decoded, nil
	}
	return base64.URLEncoding.DecodeString(data)
}

func collectAttachments(part *gmail.MessagePart) []models.Attachment {
	if part == nil {
		return nil
	}

	var attachments []models.Attachment
	if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
		attachments = append(attachments, models.Attachment{
			ID:       part.Body.AttachmentId,
			Filename: part.Filename,
			MimeType: part.MimeType,
			Size:     part.Body.Size,
		})
	}

	for _, p := range part.Parts {
		attachments = append(attachments, collectAttachments(p)...)
	}

	return attachments
}
