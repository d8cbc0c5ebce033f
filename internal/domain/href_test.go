package domain

import "testing"

func TestScheme(t *testing.T) {
	tests := map[string]string{
		"s3://bucket/key":     "s3",
		"S3://bucket/key":     "s3",
		"https://host/a.json": "https",
		"/var/lib/catalog":    "",
		"relative/catalog":    "",
		"://broken":           "",
	}
	for ref, want := range tests {
		if got := Scheme(ref); got != want {
			t.Errorf("Scheme(%q) = %q, want %q", ref, got, want)
		}
	}
}

func TestResolveHref(t *testing.T) {
	tests := []struct {
		name string
		base string
		href string
		want string
	}{
		{"s3 relative", "s3://cat/catalog.json", "./scene01/scene01.json", "s3://cat/scene01/scene01.json"},
		{"s3 parent", "s3://cat/dem/catalog.json", "../catalog.json", "s3://cat/catalog.json"},
		{"absolute kept", "s3://cat/catalog.json", "s3://other/x.json", "s3://other/x.json"},
		{"local relative", "/srv/cat/catalog.json", "./a/a.json", "/srv/cat/a/a.json"},
		{"local absolute", "/srv/cat/catalog.json", "/elsewhere/b.json", "/elsewhere/b.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveHref(tt.base, tt.href); got != tt.want {
				t.Errorf("ResolveHref() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHrefDir(t *testing.T) {
	tests := map[string]string{
		"s3://cat/catalog.json":     "s3://cat",
		"s3://cat/dem/catalog.json": "s3://cat/dem",
		"s3://cat":                  "s3://cat",
		"/srv/catalog.json":         "/srv",
		"catalog.json":              ".",
	}
	for href, want := range tests {
		if got := HrefDir(href); got != want {
			t.Errorf("HrefDir(%q) = %q, want %q", href, got, want)
		}
	}
}

func TestCatalogRootHref(t *testing.T) {
	tests := map[string]string{
		"s3://uca-eoscfe-catalog/":       "s3://uca-eoscfe-catalog/catalog.json",
		"s3://uca-eoscfe-catalog":        "s3://uca-eoscfe-catalog/catalog.json",
		"s3://bucket/stac/root.json":     "s3://bucket/stac/root.json",
		"/var/lib/stacsync":              "/var/lib/stacsync/catalog.json",
		"/var/lib/stacsync/Catalog.JSON": "/var/lib/stacsync/Catalog.JSON",
	}
	for root, want := range tests {
		if got := CatalogRootHref(root); got != want {
			t.Errorf("CatalogRootHref(%q) = %q, want %q", root, got, want)
		}
	}
}
