package inspect

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var urlRegex = regexp.MustCompile(`https?://[^\s]+`)

// ExtractURLs returns every http(s) URL in the message text.
func ExtractURLs(content string) []string {
	return urlRegex.FindAllString(content, -1)
}

// NormalizeURL parses a raw URL and returns it with a lower-cased,
// punycode-normalized host. The host is returned separately for domain
// checks.
func NormalizeURL(raw string) (*url.URL, string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, "", err
	}

	host := strings.ToLower(parsed.Hostname())
	asciiHost, err := idna.ToASCII(host)
	if err == nil {
		host = asciiHost
	}

	parsed.Host = host
	parsed.Fragment = ""
	parsed.User = nil

	return parsed, host, nil
}

// candidateFilename extracts the last path segment of a URL as a filename
// candidate. The path is already percent-decoded by url.Parse; the query
// string is not part of it.
func candidateFilename(parsed *url.URL) string {
	path := strings.TrimSuffix(parsed.Path, "/")
	if path == "" {
		return ""
	}
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// fileExt returns the final dot-segment of a filename, lower-cased, or ""
// when the name has no extension.
func fileExt(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

// matchesAny reports whether any pattern is a case-insensitive substring of
// the value. Patterns are stored lower-cased.
func matchesAny(value string, patterns map[string]struct{}) bool {
	if len(patterns) == 0 {
		return false
	}
	value = strings.ToLower(value)
	for pattern := range patterns {
		if strings.Contains(value, pattern) {
			return true
		}
	}
	return false
}
