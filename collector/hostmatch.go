package collector

import "strings"

// MatchHost reports whether host matches pattern. A pattern without '*' must
// match exactly. '*' is a multi-character wildcard: a leading or trailing '*'
// relaxes the corresponding anchor, internal wildcards require the literal
// segments to appear in order. "*.cdn.example.com" matches "a.cdn.example.com"
// but not "cdn.example.com".
func MatchHost(pattern, host string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == host
	}

	parts := strings.Split(pattern, "*")

	if first := parts[0]; first != "" {
		if !strings.HasPrefix(host, first) {
			return false
		}

		host = host[len(first):]
	}

	if last := parts[len(parts)-1]; last != "" {
		if !strings.HasSuffix(host, last) {
			return false
		}

		host = host[:len(host)-len(last)]
	}

	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}

		index := strings.Index(host, part)
		if index < 0 {
			return false
		}

		host = host[index+len(part):]
	}

	return true
}

// HostFilter decides which image hosts count toward page metrics.
type HostFilter struct {
	// Ignore lists hosts that never count, typically tracking pixels.
	Ignore []string

	// Allow restricts qualifying hosts to those matching at least one
	// wildcard pattern. Empty means all hosts are allowed.
	Allow []string
}

// DefaultIgnoredHosts are well-known tracking pixel hosts excluded from every
// measurement.
var DefaultIgnoredHosts = []string{
	"www.facebook.com",
	"bat.bing.com",
	"analytics.tiktok.com",
	"ct.pinterest.com",
	"px.ads.linkedin.com",
	"www.google-analytics.com",
}

// Qualifies reports whether an image served from host should be measured.
func (f HostFilter) Qualifies(host string) bool {
	for _, ignored := range f.Ignore {
		if host == ignored {
			return false
		}
	}

	if len(f.Allow) == 0 {
		return true
	}

	for _, pattern := range f.Allow {
		if MatchHost(pattern, host) {
			return true
		}
	}

	return false
}
