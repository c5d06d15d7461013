package intake

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

const maxPartDepth = 5

var (
	wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}
	tagPattern  = regexp.MustCompile(`(?s)<(script|style)[^>]*>.*?</(script|style)>|<[^>]+>`)
)

// ParsedMessage is the text view of a raw RFC 5322 message
type ParsedMessage struct {
	MessageID string
	Subject   string
	From      string
	Body      string
}

// ParseMessage reads a raw message, decoding encoded words in headers and
// extracting readable text from the body
func ParseMessage(r io.Reader) (*ParsedMessage, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email message: %w", err)
	}

	body, err := extractText(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text content: %w", err)
	}

	return &ParsedMessage{
		MessageID: strings.Trim(strings.TrimSpace(msg.Header.Get("Message-Id")), "<>"),
		Subject:   DecodeHeader(msg.Header.Get("Subject")),
		From:      DecodeHeader(msg.Header.Get("From")),
		Body:      body,
	}, nil
}

// DecodeHeader decodes RFC 2047 encoded words, returning the input unchanged
// when it cannot be decoded
func DecodeHeader(value string) string {
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}

// extractText prefers text/plain parts and falls back to tag-stripped text/html
func extractText(contentType, transferEncoding string, body io.Reader, depth int) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, params = "text/plain", map[string]string{}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" || depth >= maxPartDepth {
			return "", nil
		}
		return extractMultipart(multipart.NewReader(body, boundary), depth)
	}

	if !strings.HasPrefix(mediaType, "text/") {
		return "", nil
	}

	text, err := decodePart(body, transferEncoding, params["charset"])
	if err != nil {
		return "", err
	}
	if mediaType == "text/html" {
		text = stripTags(text)
	}
	return text, nil
}

func extractMultipart(mr *multipart.Reader, depth int) (string, error) {
	var plain, html bytes.Buffer

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if plain.Len() > 0 || html.Len() > 0 {
				break
			}
			return "", err
		}

		if disposition, _, _ := mime.ParseMediaType(part.Header.Get("Content-Disposition")); disposition == "attachment" {
			continue
		}

		partType := part.Header.Get("Content-Type")
		if partType == "" {
			partType = "text/plain"
		}

		// multipart.Reader already decodes quoted-printable parts
		encoding := part.Header.Get("Content-Transfer-Encoding")
		text, err := extractText(partType, encoding, part, depth+1)
		if err != nil || text == "" {
			continue
		}

		if mediaType, _, _ := mime.ParseMediaType(partType); mediaType == "text/html" {
			html.WriteString(text)
			html.WriteString("\n")
		} else {
			plain.WriteString(text)
			plain.WriteString("\n")
		}
	}

	if plain.Len() > 0 {
		return strings.TrimSpace(plain.String()), nil
	}
	return strings.TrimSpace(html.String()), nil
}

func decodePart(body io.Reader, transferEncoding, charset string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "base64":
		body = base64.NewDecoder(base64.StdEncoding, body)
	case "quoted-printable":
		body = quotedprintable.NewReader(body)
	}

	if charset != "" && !strings.EqualFold(charset, "utf-8") && !strings.EqualFold(charset, "us-ascii") {
		decoded, err := charsetReader(charset, body)
		if err == nil {
			body = decoded
		}
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func stripTags(s string) string {
	return strings.Join(strings.Fields(tagPattern.ReplaceAllString(s, " ")), " ")
}
