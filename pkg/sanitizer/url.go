package sanitizer

import (
	"net/url"
	"strings"
)

// NormalizeURL forces https and lowercases the host. Path and query keep their
// case because image hosts are case sensitive. Unparseable input returns "".
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if after, ok := strings.CutPrefix(raw, "http://"); ok {
		raw = after
	}
	if !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String()
}
