package urlutil

import (
	"net/url"
	"sort"
	"strings"
)

// Canonicalize applies a deterministic normalization to a URL, producing a
// canonical form so that distinct spellings of the same resource collapse
// to a single frontier/seen-set key.
//
// The normalization follows these rules:
//   - Scheme and host are lowercased
//   - Default ports are omitted (e.g., :80 for http, :443 for https)
//   - The path is percent-decoded then re-encoded canonically
//   - Dot-segments ("/./", "/a/../") are collapsed per RFC 3986 §5.2.4
//   - Repeated slashes are collapsed to one
//   - An empty path becomes "/"
//   - Trailing slashes are removed, except for the root path
//   - The fragment is dropped
//   - Query parameters are kept but sorted by key (stable for repeated
//     keys), since query strings can carry crawl-relevant state
//
// Properties:
//   - Pure: no state, no memory
//   - Deterministic: same input always produces same output
//   - Idempotent: Canonicalize(Canonicalize(url)) == Canonicalize(url)
//   - Context-free: does not depend on crawl history
func Canonicalize(sourceUrl url.URL) url.URL {
	// Create a copy to avoid mutating the original
	canonical := sourceUrl

	canonical.Scheme = lowerASCII(canonical.Scheme)
	canonical.Host = lowerASCII(canonical.Host)

	if host, port := canonical.Hostname(), canonical.Port(); port != "" {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			canonical.Host = host
		}
	}

	canonical.Path = canonicalizePath(canonical.Path)
	canonical.RawPath = ""

	canonical.Fragment = ""
	canonical.RawFragment = ""

	canonical.RawQuery = sortQuery(canonical.RawQuery)
	canonical.ForceQuery = false

	return canonical
}

// canonicalizePath percent-decodes, collapses dot-segments and repeated
// slashes, strips trailing slashes (except root), and guarantees a leading
// "/" result.
func canonicalizePath(path string) string {
	if decoded, err := url.PathUnescape(path); err == nil {
		path = decoded
	}

	if path == "" {
		return "/"
	}

	collapsed := collapseSlashes(path)
	cleaned := collapseDotSegments(collapsed)

	if len(cleaned) > 1 {
		cleaned = stripTrailingSlash(cleaned)
	}

	if cleaned == "" {
		return "/"
	}
	if cleaned[0] != '/' {
		cleaned = "/" + cleaned
	}
	return (&url.URL{Path: cleaned}).EscapedPath()
}

// collapseSlashes replaces runs of "/" with a single "/".
func collapseSlashes(path string) string {
	var b strings.Builder
	b.Grow(len(path))
	prevSlash := false
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

// collapseDotSegments implements RFC 3986 §5.2.4 remove_dot_segments.
func collapseDotSegments(path string) string {
	isAbs := strings.HasPrefix(path, "/")
	segments := strings.Split(path, "/")
	out := make([]string, 0, len(segments))

	for _, seg := range segments {
		switch seg {
		case ".":
			// drop
		case "..":
			if len(out) > 0 && out[len(out)-1] != "" {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}

	result := strings.Join(out, "/")
	if isAbs && !strings.HasPrefix(result, "/") {
		result = "/" + result
	}
	return result
}

// stripTrailingSlash removes trailing slashes from a path.
func stripTrailingSlash(path string) string {
	for len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}

// sortQuery sorts query parameters by key (stable, so multi-valued keys
// keep their relative order), leaving raw when unparseable.
func sortQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return rawQuery
	}
	if len(values) == 0 {
		return ""
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range values[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// lowerASCII converts ASCII characters to lowercase without allocating.
// This is faster than strings.ToLower for ASCII-only strings.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// IsValidForCrawl reports whether a URL is a plausible crawl target: an
// http(s) scheme and a non-empty host. It does not consult allow-lists or
// robots.txt -- those are policy decisions made by the engine, not the URL
// itself.
func IsValidForCrawl(u url.URL) bool {
	scheme := lowerASCII(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Hostname() != ""
}

// IsAllowedForCrawl applies the engine's domain-allowlist and
// extension-denylist policy to a URL already known to be IsValidForCrawl.
// An empty allowedDomains means every domain is allowed. Domain matching
// is case-insensitive substring containment, not exact/suffix match --
// carried over deliberately from the source this behavior was distilled
// from; operators should be aware "example.com" also allows
// "notexample.com.evil.test". Extension matching is a case-insensitive
// suffix check against the URL path.
func IsAllowedForCrawl(u url.URL, allowedDomains []string, excludedExtensions []string) bool {
	if len(allowedDomains) > 0 {
		host := lowerASCII(u.Hostname())
		allowed := false
		for _, domain := range allowedDomains {
			if strings.Contains(host, lowerASCII(domain)) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	path := lowerASCII(u.Path)
	for _, ext := range excludedExtensions {
		if ext == "" {
			continue
		}
		if strings.HasSuffix(path, lowerASCII(ext)) {
			return false
		}
	}

	return true
}

// Resolve turns a possibly-relative URL discovered on a page into an
// absolute URL, using scheme/host as the base when u has neither.
func Resolve(u url.URL, scheme string, host string) url.URL {
	if u.IsAbs() && u.Host != "" {
		return u
	}

	base := url.URL{Scheme: scheme, Host: host, Path: "/"}
	return *base.ResolveReference(&u)
}

// FilterByHost keeps only the URLs whose host equals the given host
// (case-insensitive).
func FilterByHost(host string, urls []url.URL) []url.URL {
	target := lowerASCII(host)
	filtered := make([]url.URL, 0, len(urls))
	for _, u := range urls {
		if lowerASCII(u.Hostname()) == target {
			filtered = append(filtered, u)
		}
	}
	return filtered
}
