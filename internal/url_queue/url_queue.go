package urlqueue

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var rePlaceholder = regexp.MustCompile(`\{([a-z_]+)\}`)

// ExpandTemplate substitutes {name} placeholders with vars. Values are
// path-escaped. A placeholder without a value is an error, never an empty
// path segment.
func ExpandTemplate(pattern string, vars map[string]string) (string, error) {
	var missing []string
	out := rePlaceholder.ReplaceAllStringFunc(pattern, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := vars[name]
		if !ok || v == "" {
			missing = append(missing, name)
			return m
		}
		return url.PathEscape(v)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("template %q: no value for %s", pattern, strings.Join(missing, ", "))
	}
	return out, nil
}

// Placeholders lists the placeholder names of pattern in order of appearance.
func Placeholders(pattern string) []string {
	var names []string
	for _, m := range rePlaceholder.FindAllStringSubmatch(pattern, -1) {
		names = append(names, m[1])
	}
	return names
}

// TemplateMatcher compiles pattern into a regexp matching URLs built from it.
// Placeholders in fixed are substituted first; the others become capture
// groups. Only the path and query of candidate URLs are considered.
func TemplateMatcher(pattern string, fixed map[string]string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString(`^`)
	last := 0
	for _, loc := range rePlaceholder.FindAllStringSubmatchIndex(pattern, -1) {
		b.WriteString(regexp.QuoteMeta(pattern[last:loc[0]]))
		name := pattern[loc[2]:loc[3]]
		if v, ok := fixed[name]; ok && v != "" {
			b.WriteString(regexp.QuoteMeta(url.PathEscape(v)))
		} else {
			fmt.Fprintf(&b, `(?P<%s>[^/?&#]+)`, name)
		}
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(pattern[last:]))
	b.WriteString(`$`)
	return regexp.Compile(b.String())
}

// MatchTemplate returns the captured placeholder values of link against re.
func MatchTemplate(re *regexp.Regexp, link string) (map[string]string, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return nil, false
	}
	target := u.EscapedPath()
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	m := re.FindStringSubmatch(target)
	if m == nil {
		return nil, false
	}
	out := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name == "" {
			continue
		}
		v, err := url.PathUnescape(m[i])
		if err != nil {
			v = m[i]
		}
		out[name] = v
	}
	return out, true
}

// JoinURL resolves ref against base.
func JoinURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

// NormalizeURL drops the fragment and a leading "www." so that anchors into
// one page compare equal.
func NormalizeURL(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return urlStr
	}

	parsed.Fragment = ""
	parsed.Host = strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}

	return parsed.String()
}

// ComputeContentHash is the hex sha256 of a raw payload.
func ComputeContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
