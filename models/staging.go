package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// StagedFile is a short-lived server-held copy of uploaded bytes, referenced by
// an opaque id between two requests.
type StagedFile struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Data     []byte    `json:"data"`
	StagedAt time.Time `json:"stagedAt"`
}

// FileData is a named byte payload travelling through the pipeline.
type FileData struct {
	Name string    `json:"name"`
	Type string    `json:"type"`
	Data ByteArray `json:"data"`
}

// ByteArray decodes either a JSON array of byte values or a base64 string.
// Browsers serialise Uint8Array payloads as plain number arrays.
type ByteArray []byte

func (b *ByteArray) UnmarshalJSON(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var values []int
		if err := json.Unmarshal(trimmed, &values); err != nil {
			return err
		}
		out := make([]byte, len(values))
		for i, v := range values {
			if v < 0 || v > 255 {
				return fmt.Errorf("byte value %d at index %d out of range", v, i)
			}
			out[i] = byte(v)
		}
		*b = out
		return nil
	}
	var plain []byte
	if err := json.Unmarshal(trimmed, &plain); err != nil {
		return err
	}
	*b = plain
	return nil
}
