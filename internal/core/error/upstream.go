package errx

import (
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// maxUpstreamBody caps how much of an upstream error body is kept.
const maxUpstreamBody = 64 * 1024

// FromResponse builds an UpstreamHTTPError from a non-2xx answer.
//
// The display message is the body's "message" string, else its "error"
// string (or "error.message" for OpenAI-style bodies), else the compact JSON
// body. Non-JSON bodies are surfaced as trimmed text; an empty body falls back
// to the status text.
func FromResponse(status int, body []byte) *AppError {
	if len(body) > maxUpstreamBody {
		body = body[:maxUpstreamBody]
	}
	raw := strings.TrimSpace(string(body))
	return Upstream(status, upstreamMessage(status, raw), raw)
}

func upstreamMessage(status int, raw string) string {
	if raw == "" {
		return http.StatusText(status)
	}
	if !gjson.Valid(raw) {
		return raw
	}
	for _, path := range []string{"message", "error.message", "error"} {
		if r := gjson.Get(raw, path); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return gjson.Get(raw, "@ugly").Raw
}
