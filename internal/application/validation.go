package application

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gitlab.com/timkado/api/prebid-cache-service/internal/domain"
)

// ValidatePutBody checks a put request body against the batch schema and
// returns the parsed batch. Any violation is reported as
// domain.ErrInvalidRequestBody with the reason appended; nothing is stored for
// a batch that fails here.
//
// Schema: {"puts": [{"type": "xml"|"json", "value": <any>, "ttlseconds"?: <int in (0, 3600]>}, ...]}
func ValidatePutBody(body []byte) (domain.PutBatch, error) {
	var top map[string]json.RawMessage
	if !isJSONKind(body, '{') {
		return domain.PutBatch{}, invalid("body is not a JSON object")
	}
	if err := json.Unmarshal(body, &top); err != nil {
		return domain.PutBatch{}, invalid("body is not valid JSON: %v", err)
	}

	rawPuts, ok := top["puts"]
	if !ok {
		return domain.PutBatch{}, invalid("missing puts field")
	}
	if !isJSONKind(rawPuts, '[') {
		return domain.PutBatch{}, invalid("puts is not an array")
	}
	var puts []json.RawMessage
	if err := json.Unmarshal(rawPuts, &puts); err != nil {
		return domain.PutBatch{}, invalid("puts is not an array: %v", err)
	}

	batch := domain.PutBatch{Items: make([]domain.PutItem, 0, len(puts))}
	for i, rawItem := range puts {
		item, err := validatePutItem(rawItem)
		if err != nil {
			return domain.PutBatch{}, fmt.Errorf("%w: puts[%d]", err, i)
		}
		batch.Items = append(batch.Items, item)
	}
	return batch, nil
}

func validatePutItem(raw json.RawMessage) (domain.PutItem, error) {
	if !isJSONKind(raw, '{') {
		return domain.PutItem{}, invalid("item is not an object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.PutItem{}, invalid("item is not an object: %v", err)
	}

	rawType, hasType := fields["type"]
	rawValue, hasValue := fields["value"]
	if !hasType || !hasValue {
		return domain.PutItem{}, invalid("item requires type and value")
	}

	var typeName string
	if err := json.Unmarshal(rawType, &typeName); err != nil {
		return domain.PutItem{}, invalid("type is not a string")
	}
	contentType, ok := domain.ParseContentType(typeName)
	if !ok {
		return domain.PutItem{}, invalid("type %q is not allowed", typeName)
	}

	item := domain.PutItem{Type: contentType}

	var compact bytes.Buffer
	if err := json.Compact(&compact, rawValue); err != nil {
		return domain.PutItem{}, invalid("value is not valid JSON: %v", err)
	}
	item.Value = compact.Bytes()

	if rawTTL, present := fields["ttlseconds"]; present {
		ttl, err := parseTTLSeconds(rawTTL)
		if err != nil {
			return domain.PutItem{}, err
		}
		item.TTLSeconds = &ttl
	}
	return item, nil
}

// parseTTLSeconds accepts a JSON integer or a string holding one, in (0, MaxTTLSeconds].
func parseTTLSeconds(raw json.RawMessage) (int, error) {
	var n int
	switch {
	case isJSONKind(raw, '"'):
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, invalid("ttlseconds is not a valid string")
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, invalid("ttlseconds %q is not an integer", s)
		}
		n = parsed
	default:
		var num json.Number
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&num); err != nil {
			return 0, invalid("ttlseconds is not a number")
		}
		parsed, err := strconv.Atoi(num.String())
		if err != nil {
			return 0, invalid("ttlseconds %s is not an integer", num)
		}
		n = parsed
	}
	if n <= 0 || n > domain.MaxTTLSeconds {
		return 0, invalid("ttlseconds %d out of range (0, %d]", n, domain.MaxTTLSeconds)
	}
	return n, nil
}

// isJSONKind reports whether the first non-space byte of raw is open.
func isJSONKind(raw []byte, open byte) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == open
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalidRequestBody}, args...)...)
}
