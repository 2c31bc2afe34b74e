//go:generate mockgen -destination=mock/ports.go -package=mock_domain . ItemStore,MetricsRecorder,CredentialProvider

package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultTTLSeconds applies when a put item carries no usable ttlseconds.
	DefaultTTLSeconds = 300
	// MaxTTLSeconds is the upper bound accepted for ttlseconds.
	MaxTTLSeconds = 3600
)

// ContentType is the kind of payload a cached item holds. It decides the
// Content-Type header served on retrieval.
type ContentType string

const (
	ContentTypeXML  ContentType = "xml"
	ContentTypeJSON ContentType = "json"
)

// ParseContentType accepts only the lowercase forms of the allowed types.
func ParseContentType(s string) (ContentType, bool) {
	switch ContentType(s) {
	case ContentTypeXML, ContentTypeJSON:
		return ContentType(s), true
	default:
		return "", false
	}
}

// MIMEType returns the media type served for this content type, e.g. application/json.
func (t ContentType) MIMEType() string {
	return "application/" + string(t)
}

// CachedItem is the structural record stored under a generated key.
type CachedItem struct {
	Type  ContentType     `json:"type"`
	Value json.RawMessage `json:"value"`
}

// NewCachedItem builds the record to store for a put item. The type is lower-cased
// here as well, since PutItem values are not always built by the validator.
func NewCachedItem(t ContentType, value json.RawMessage) CachedItem {
	return CachedItem{
		Type:  ContentType(strings.ToLower(string(t))),
		Value: value,
	}
}

// Marshal serializes the record for storage. Markup in values is kept as-is
// rather than HTML-escaped.
func (c CachedItem) Marshal() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return "", fmt.Errorf("failed to marshal cached item: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// DecodeCachedItem parses a stored value. Anything that is not an object holding
// both a known "type" and a "value" field is reported as ErrCorruptedEntry.
func DecodeCachedItem(raw string) (CachedItem, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return CachedItem{}, fmt.Errorf("%w: %v", ErrCorruptedEntry, err)
	}
	rawType, hasType := fields["type"]
	rawValue, hasValue := fields["value"]
	if !hasType || !hasValue {
		return CachedItem{}, fmt.Errorf("%w: missing type or value field", ErrCorruptedEntry)
	}

	var typeName string
	if err := json.Unmarshal(rawType, &typeName); err != nil {
		return CachedItem{}, fmt.Errorf("%w: type is not a string", ErrCorruptedEntry)
	}
	ct, ok := ParseContentType(typeName)
	if !ok {
		return CachedItem{}, fmt.Errorf("%w: unknown type %q", ErrCorruptedEntry, typeName)
	}
	return CachedItem{Type: ct, Value: rawValue}, nil
}

// PutItem is one validated element of a put batch.
type PutItem struct {
	Type       ContentType
	Value      json.RawMessage
	TTLSeconds *int // nil when the client did not send ttlseconds
}

// PutBatch is a put request body that passed validation.
type PutBatch struct {
	Items []PutItem
}

// EffectiveTTL resolves the lifetime used at storage time. Values outside
// (0, MaxTTLSeconds] fall back to the default instead of being rejected.
func EffectiveTTL(ttlSeconds *int) time.Duration {
	if ttlSeconds == nil || *ttlSeconds <= 0 || *ttlSeconds > MaxTTLSeconds {
		return DefaultTTLSeconds * time.Second
	}
	return time.Duration(*ttlSeconds) * time.Second
}

// ItemStore is the set of backend primitives the handlers need.
// Get returns ErrItemNotFound for a missing key; every backend failure is
// reported as ErrCacheUnavailable.
type ItemStore interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, error)
	SetEx(ctx context.Context, key string, ttl time.Duration, value string) error
	TTL(ctx context.Context, key string) (time.Duration, error)
}
