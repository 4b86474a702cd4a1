package transport

import (
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/hashicorp/go-cleanhttp"
)

// MaxBodyExcerpt bounds how much of an unexpected response body is kept for logs.
const MaxBodyExcerpt = 200

// NewClient returns an HTTP client with its own pooled transport. Timeouts are
// applied per request through the context instead of on the client.
func NewClient() *http.Client {
	return cleanhttp.DefaultPooledClient()
}

// CheckStatus turns a response whose status is not in ok into a KindHTTPStatus
// error carrying an excerpt of the body. With no ok codes any status below 400
// passes.
func CheckStatus(op, url string, resp *http.Response, ok ...int) error {
	if statusAllowed(resp.StatusCode, ok) {
		return nil
	}
	return &Error{
		Kind:   KindHTTPStatus,
		Op:     op,
		URL:    url,
		Status: resp.StatusCode,
		Body:   Excerpt(resp.Body, MaxBodyExcerpt),
		Err:    fmt.Errorf("unexpected status %s", resp.Status),
	}
}

func statusAllowed(code int, ok []int) bool {
	if len(ok) == 0 {
		return code >= 200 && code < 400
	}
	for _, c := range ok {
		if c == code {
			return true
		}
	}
	return false
}

// Excerpt reads at most n characters from r.
func Excerpt(r io.Reader, n int) string {
	if r == nil {
		return ""
	}
	// utf8.UTFMax bytes per rune is the worst case for n characters.
	data, _ := io.ReadAll(io.LimitReader(r, int64(n*utf8.UTFMax)))
	s := string(data)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Drain discards the rest of body and closes it so the connection can be reused.
func Drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<20))
	_ = body.Close()
}
