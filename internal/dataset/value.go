package dataset

import (
	"bytes"
	"encoding/json"
)

// IsNull reports whether raw is absent or the JSON literal null.
func IsNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// IsObject reports whether raw holds a JSON object.
func IsObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// StringForm renders a value the way it is compared and published as text:
// strings yield their contents, null or absent values yield "", and anything
// else yields its compact JSON text.
func StringForm(raw json.RawMessage) string {
	if IsNull(raw) {
		return ""
	}
	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err == nil {
			return text
		}
	}
	buffer := bytes.Buffer{}
	if err := json.Compact(&buffer, trimmed); err != nil {
		return string(trimmed)
	}
	return buffer.String()
}

// String encodes text as a raw JSON string value.
func String(text string) json.RawMessage {
	encoded, _ := json.Marshal(text)
	return encoded
}
