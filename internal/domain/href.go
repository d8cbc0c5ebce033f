package domain

import (
	"net/url"
	"path"
	"strings"
)

// CatalogFileName is the file name of every catalog document.
const CatalogFileName = "catalog.json"

// Scheme returns the lower-cased URI scheme of a reference, or "" for plain paths.
func Scheme(ref string) string {
	i := strings.Index(ref, "://")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(ref[:i])
}

// IsAbsoluteHref reports whether href needs no base to be resolved.
func IsAbsoluteHref(href string) bool {
	return Scheme(href) != "" || strings.HasPrefix(href, "/")
}

// ResolveHref resolves href against the href of the document that contains it.
func ResolveHref(base, href string) string {
	if IsAbsoluteHref(href) {
		return href
	}
	if Scheme(base) != "" {
		b, err := url.Parse(base)
		if err == nil {
			if r, err := url.Parse(href); err == nil {
				return b.ResolveReference(r).String()
			}
		}
	}
	return path.Join(path.Dir(base), href)
}

// HrefDir returns the directory part of an href, without trailing slash.
func HrefDir(href string) string {
	i := strings.LastIndex(href, "/")
	if i < 0 {
		return "."
	}
	dir := href[:i]
	if strings.HasSuffix(dir, ":/") {
		// scheme://bucket has no path; keep the authority.
		return href
	}
	return dir
}

// JoinHref appends path elements to a directory href.
func JoinHref(dir string, elem ...string) string {
	return strings.TrimSuffix(dir, "/") + "/" + path.Join(elem...)
}

// CatalogRootHref returns the href of the root catalog document for a
// configured root, which may name either a directory or the document itself.
func CatalogRootHref(root string) string {
	if strings.HasSuffix(strings.ToLower(root), ".json") {
		return root
	}
	return JoinHref(root, CatalogFileName)
}
