package http

import (
	"net/http"
	"net/url"
	"strings"
)

// maxSearchLength bounds the search term taken from the query string.
const maxSearchLength = 100

// searchParam returns the sanitized ?search= term of r.
func searchParam(r *http.Request) string {
	s := sanitizeInput(r.URL.Query().Get("search"))
	if len(s) > maxSearchLength {
		s = s[:maxSearchLength]
	}
	return s
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func pathEscape(s string) string {
	return url.PathEscape(s)
}
