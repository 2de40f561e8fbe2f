package session

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EncodeHistory serializes h to the Store wire format: a JSON array of
// {"role","content"} objects. Text is written verbatim as UTF-8.
func EncodeHistory(h History) ([]byte, error) {
	if h == nil {
		h = History{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(h); err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DecodeHistory parses the Store wire format. Empty input is an empty
// History. Anything that is not an array of Turns with known roles is
// reported as ErrMalformedHistory.
func DecodeHistory(data []byte) (History, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return History{}, nil
	}
	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedHistory, err)
	}
	for i, t := range h {
		if !t.Role.Valid() {
			return nil, fmt.Errorf("%w: turn %d has unknown role %q", ErrMalformedHistory, i, t.Role)
		}
	}
	if h == nil {
		h = History{}
	}
	return h, nil
}
