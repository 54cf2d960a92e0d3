package store

import (
	"encoding/json"
	"fmt"
)

// Encode renders a document as compact JSON with RFC3339 timestamps,
// the form documents take when crossing the remote memory boundary.
func Encode(doc Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("store: encode document %s: %w", doc.ID(), err)
	}
	return data, nil
}

// Decode parses a JSON document body and rehydrates timestamp-shaped
// strings, the inverse of Encode.
func Decode(data []byte) (Document, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("store: decode document: %w", err)
	}
	return Document(rehydrate(raw).(map[string]any)), nil
}
