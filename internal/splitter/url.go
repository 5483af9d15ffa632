package splitter

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

var fragmentUnsafe = regexp.MustCompile(`[^a-z0-9\- ]`)

// HeadingFragment turns a markdown heading line into a URL fragment:
// lowercased, stripped to [a-z0-9- ], spaces replaced by dashes and prefixed
// with '#'. It returns "" for text with nothing left after stripping.
func HeadingFragment(heading string) string {
	s := fragmentUnsafe.ReplaceAllString(strings.ToLower(heading), "")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return "#" + strings.ReplaceAll(s, " ", "-")
}

// PathToURL maps a corpus file to the URL it is published at. With an empty
// baseURL, or a path outside root, the result is a file:// URL.
// "dir/index.md" maps to "dir/" and "page.md" to "page/".
func PathToURL(root, path, baseURL string) string {
	rel, err := filepath.Rel(root, path)
	if baseURL == "" || err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "file://" + (&url.URL{Path: filepath.ToSlash(path)}).EscapedPath()
	}
	rel = filepath.ToSlash(rel)
	switch {
	case rel == "index.md":
		rel = ""
	case strings.HasSuffix(rel, "/index.md"):
		rel = strings.TrimSuffix(rel, "index.md")
	case strings.HasSuffix(rel, ".md"):
		rel = strings.TrimSuffix(rel, ".md") + "/"
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + (&url.URL{Path: rel}).EscapedPath()
}

var markdownLink = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)\)`)

// ResolveLinks rewrites relative markdown links in text, a file at path
// inside root, to the URLs of their targets. Absolute URLs, in-page anchors,
// mailto links and targets outside root are left alone.
func ResolveLinks(text, path, root, baseURL string) string {
	return markdownLink.ReplaceAllStringFunc(text, func(link string) string {
		m := markdownLink.FindStringSubmatch(link)
		target := m[2]
		if strings.Contains(target, "://") || strings.HasPrefix(target, "#") || strings.HasPrefix(target, "mailto:") {
			return link
		}
		target, fragment, _ := strings.Cut(target, "#")
		if unescaped, err := url.PathUnescape(target); err == nil {
			target = unescaped
		}
		var abs string
		if strings.HasPrefix(target, "/") {
			abs = filepath.Join(root, filepath.FromSlash(target))
		} else {
			abs = filepath.Join(filepath.Dir(path), filepath.FromSlash(target))
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return link
		}
		resolved := PathToURL(root, abs, baseURL)
		if fragment != "" {
			resolved += "#" + fragment
		}
		return "[" + m[1] + "](" + resolved + ")"
	})
}
