package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// EventClass is the coarse kind of an object-store change event.
type EventClass string

// Event classes.
const (
	EventCreated EventClass = "created"
	EventRemoved EventClass = "removed"
	EventOther   EventClass = "other"
)

// ObjectScheme is the URI scheme used for objects named by notifications.
const ObjectScheme = "s3"

// Batch is one message body: a list of notification records.
type Batch struct {
	Records []Record `json:"Records"`
}

// Record represents one object-store change event.
type Record struct {
	EventName   string   `json:"eventName"`
	EventID     string   `json:"eventId"`
	EventSource string   `json:"eventSource,omitempty"`
	S3          S3Entity `json:"s3"`
}

// Event sources whose notifications carry URL-encoded object keys.
const (
	EventSourceAWS   = "aws:s3"
	EventSourceMinIO = "minio:s3"
)

// S3Entity holds the bucket and object a record refers to.
type S3Entity struct {
	Bucket BucketEntity `json:"bucket"`
	Object ObjectEntity `json:"object"`
}

// BucketEntity names the bucket of a record.
type BucketEntity struct {
	Name string `json:"name"`
}

// ObjectEntity describes the object of a record.
// Metadata is the Ceph list form; UserMetadata is the MinIO/AWS map form.
type ObjectEntity struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size,omitempty"`
	ETag         string            `json:"eTag,omitempty"`
	Metadata     []MetadataEntry   `json:"metadata,omitempty"`
	UserMetadata map[string]string `json:"userMetadata,omitempty"`
}

// MetadataEntry is one key/value pair attached to an object at write time.
type MetadataEntry struct {
	Key string `json:"key"`
	Val string `json:"val"`
}

// ParseBatch decodes a message body into a batch of records.
func ParseBatch(body []byte) (*Batch, error) {
	var raw struct {
		Records *[]Record `json:"Records"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &NotificationError{Err: err}
	}
	if raw.Records == nil {
		return nil, &NotificationError{Err: errors.New("missing Records array")}
	}
	return &Batch{Records: *raw.Records}, nil
}

// Class classifies the record's event name. An "s3:" prefix is tolerated.
func (r Record) Class() EventClass {
	name := strings.TrimPrefix(r.EventName, "s3:")
	switch {
	case strings.HasPrefix(name, "ObjectCreated:"):
		return EventCreated
	case strings.HasPrefix(name, "ObjectRemoved:"):
		return EventRemoved
	default:
		return EventOther
	}
}

// KeyEncoded reports whether the record's object key is URL-encoded. AWS
// and MinIO encode keys; Ceph and unknown sources send them verbatim.
func (r Record) KeyEncoded() bool {
	switch r.EventSource {
	case EventSourceAWS, EventSourceMinIO:
		return true
	}
	return strings.HasPrefix(r.EventName, "s3:")
}

// ObjectKey returns the object key, decoded when the source encodes keys.
// An undecodable key is returned as is.
func (r Record) ObjectKey() string {
	if !r.KeyEncoded() {
		return r.S3.Object.Key
	}
	key, err := url.QueryUnescape(r.S3.Object.Key)
	if err != nil {
		return r.S3.Object.Key
	}
	return key
}

// Validate checks that the record names a bucket and an object.
func (r Record) Validate() error {
	if r.S3.Bucket.Name == "" {
		return &NotificationError{Err: fmt.Errorf("record %q: missing bucket name", r.EventID)}
	}
	if r.S3.Object.Key == "" {
		return &NotificationError{Err: fmt.Errorf("record %q: missing object key", r.EventID)}
	}
	return nil
}

// ObjectURI returns the scheme://bucket/key URI of the record's object.
func (r Record) ObjectURI() string {
	return fmt.Sprintf("%s://%s/%s", ObjectScheme, r.S3.Bucket.Name, r.ObjectKey())
}

// DeriveItemID extracts an item ID from an object key or file path:
// the base name without its last extension.
func DeriveItemID(key string) string {
	base := path.Base(key)
	if base == "." || base == "/" {
		return ""
	}
	ext := path.Ext(base)
	return base[:len(base)-len(ext)]
}
