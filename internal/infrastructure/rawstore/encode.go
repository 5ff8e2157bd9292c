// Package rawstore keeps one raw JSON artifact per publication date.
package rawstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"RegisterSync/internal/domain"
)

const Extension = ".json"

var (
	// ErrInvalidName rejects artifact names that are not <YYYY-MM-DD>.json.
	ErrInvalidName = errors.New("rawstore: invalid artifact name")

	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// FileName is the artifact name for a snapshot date.
func FileName(date string) (string, error) {
	if !datePattern.MatchString(date) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, date)
	}
	return date + Extension, nil
}

// Encode renders a snapshot as indented UTF-8 JSON. Records are copied
// without HTML escaping so upstream markup survives untouched.
func Encode(snap domain.Snapshot) ([]byte, error) {
	if snap.Results == nil {
		snap.Results = []json.RawMessage{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return nil, fmt.Errorf("encode snapshot %s: %w", snap.Date, err)
	}
	return buf.Bytes(), nil
}
