package service

import (
	"strings"
)

// MetadataScrubber removes blacklisted fields from activity metadata before it leaves the
// service in feeds, exports or realtime events. Keys match case-insensitively, at any depth.
type MetadataScrubber struct {
	blocked map[string]struct{}
}

// NewMetadataScrubber builds an immutable scrubber from the configured field names.
func NewMetadataScrubber(fields []string) MetadataScrubber {
	blocked := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if normalized := strings.ToLower(strings.TrimSpace(field)); normalized != "" {
			blocked[normalized] = struct{}{}
		}
	}
	return MetadataScrubber{blocked: blocked}
}

// Blocks reports whether key would be removed.
func (s MetadataScrubber) Blocks(key string) bool {
	_, ok := s.blocked[strings.ToLower(key)]
	return ok
}

// Scrub returns a copy of metadata without blocked keys. The input is not modified.
func (s MetadataScrubber) Scrub(metadata map[string]interface{}) map[string]interface{} {
	if metadata == nil {
		return nil
	}
	scrubbed := make(map[string]interface{}, len(metadata))
	for key, value := range metadata {
		if s.Blocks(key) {
			continue
		}
		scrubbed[key] = s.scrubValue(value)
	}
	return scrubbed
}

func (s MetadataScrubber) scrubValue(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		return s.Scrub(typed)
	case []interface{}:
		items := make([]interface{}, 0, len(typed))
		for _, item := range typed {
			items = append(items, s.scrubValue(item))
		}
		return items
	default:
		return value
	}
}
