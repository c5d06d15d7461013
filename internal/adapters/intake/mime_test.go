package intake

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessagePlain(t *testing.T) {
	raw := "Message-ID: <abc123@example.com>\r\n" +
		"From: Alice <alice@example.com>\r\n" +
		"Subject: Lunch?\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Are you free at noon?\r\n"

	msg, err := ParseMessage(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "abc123@example.com", msg.MessageID)
	assert.Equal(t, "Alice <alice@example.com>", msg.From)
	assert.Equal(t, "Lunch?", msg.Subject)
	assert.Equal(t, "Are you free at noon?\r\n", msg.Body)
}

func TestParseMessageEncodedHeaders(t *testing.T) {
	raw := "From: =?ISO-8859-1?Q?Ren=E9?= <rene@example.fr>\r\n" +
		"Subject: =?windows-1252?Q?Caf=E9_ouvert?=\r\n" +
		"Content-Type: text/plain; charset=iso-8859-1\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"D=E9j=E0 vu\r\n"

	msg, err := ParseMessage(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "René <rene@example.fr>", msg.From)
	assert.Equal(t, "Café ouvert", msg.Subject)
	assert.Equal(t, "Déjà vu\r\n", msg.Body)
}

func TestParseMessageMultipart(t *testing.T) {
	raw := "From: news@example.com\r\n" +
		"Subject: Digest\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=outer\r\n" +
		"\r\n" +
		"--outer\r\n" +
		"Content-Type: multipart/alternative; boundary=inner\r\n" +
		"\r\n" +
		"--inner\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<html><body><p>Top <b>stories</b></p></body></html>\r\n" +
		"--inner\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"VG9wIHN0b3JpZXMg\r\n" +
		"dG9kYXk=\r\n" +
		"--inner--\r\n" +
		"--outer\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Disposition: attachment; filename=notes.txt\r\n" +
		"\r\n" +
		"attached notes\r\n" +
		"--outer--\r\n"

	msg, err := ParseMessage(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "Top stories today", msg.Body)
}

func TestParseMessageHTMLOnly(t *testing.T) {
	raw := "From: shop@example.com\r\n" +
		"Subject: Sale\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<style>p {color: red}</style><p>50% off</p><p>today only</p>"

	msg, err := ParseMessage(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "50% off today only", msg.Body)
}

func TestParseMessageInvalid(t *testing.T) {
	_, err := ParseMessage(strings.NewReader("not a message"))
	assert.Error(t, err)
}

func TestDecodeHeader(t *testing.T) {
	assert.Equal(t, "plain", DecodeHeader("plain"))
	assert.Equal(t, "¡Hola!", DecodeHeader("=?UTF-8?B?wqFIb2xhIQ==?="))
	assert.Equal(t, "=?x-unknown?Q?abc?=", DecodeHeader("=?x-unknown?Q?abc?="))
}
