package domain

import (
	"regexp"
	"strings"
)

// VendorMetadataPrefix is the prefix object stores put in front of user metadata keys.
const VendorMetadataPrefix = "x-amz-meta-"

// Metadata keys and values recognised by the updater.
const (
	DefaultNamespace     = "fairease"
	MediaTypeKeySuffix   = "catalog.mediatype"
	CatalogedTypeCOG     = "COG"
	DefaultCatalogedType = CatalogedTypeCOG
)

// Metadata is the namespaced key/value set extracted from a record.
type Metadata map[string]string

// Get returns a metadata value.
func (m Metadata) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// MediaType returns the catalog media type marker of the namespace.
func (m Metadata) MediaType(namespace string) (string, bool) {
	return m.Get(namespace + "." + MediaTypeKeySuffix)
}

// MetadataParser extracts namespaced metadata from notification records.
type MetadataParser struct {
	namespace string
	pattern   *regexp.Regexp
}

// NewMetadataParser creates a parser for keys of the form
// x-amz-meta-<namespace>.<segment>(.<segment>)*.
func NewMetadataParser(namespace string) *MetadataParser {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	namespace = strings.ToLower(namespace)
	return &MetadataParser{
		namespace: namespace,
		pattern: regexp.MustCompile(
			"^" + regexp.QuoteMeta(VendorMetadataPrefix) +
				"(" + regexp.QuoteMeta(namespace) + `(?:\.[^.]+)+)$`,
		),
	}
}

// Namespace returns the namespace token the parser matches.
func (p *MetadataParser) Namespace() string {
	return p.namespace
}

// Parse scans the record's metadata pairs and returns the matching ones,
// keyed by the dotted path after the vendor prefix. Header names are
// case-insensitive, so keys are lower-cased before matching.
func (p *MetadataParser) Parse(record Record) Metadata {
	metadata := make(Metadata)

	add := func(key, val string) {
		m := p.pattern.FindStringSubmatch(strings.ToLower(key))
		if m == nil {
			return
		}
		metadata[m[1]] = val
	}

	for key, val := range record.S3.Object.UserMetadata {
		add(key, val)
	}
	// List entries win over the map form when both carry a key.
	for _, entry := range record.S3.Object.Metadata {
		add(entry.Key, entry.Val)
	}

	return metadata
}

// IsCataloged reports whether the metadata marks the object as a cataloged
// raster of the given type.
func (p *MetadataParser) IsCataloged(metadata Metadata, catalogedType string) bool {
	v, ok := metadata.MediaType(p.namespace)
	return ok && v == catalogedType
}
