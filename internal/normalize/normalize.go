// Package normalize maps loosely-typed upstream records onto canonical documents.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"RegisterSync/internal/domain"
)

const dateLayout = "2006-01-02"

// ExcerptSeparator joins list-shaped excerpts.
const ExcerptSeparator = " … "

// ErrNotObject is returned by Decode for records that are not JSON objects.
var ErrNotObject = errors.New("normalize: record is not an object")

// Decode parses one raw record and normalizes it.
func Decode(raw json.RawMessage) (domain.Document, error) {
	var record map[string]any
	if err := json.Unmarshal(raw, &record); err != nil {
		return domain.Document{}, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	if record == nil {
		return domain.Document{}, ErrNotObject
	}
	return Record(record), nil
}

// Record is a total mapping: missing or mistyped fields become empty.
func Record(record map[string]any) domain.Document {
	return domain.Document{
		DocumentNumber:         str(record, "document_number"),
		Title:                  str(record, "title"),
		Type:                   str(record, "type"),
		Abstract:               str(record, "abstract"),
		PublicationDate:        date(record["publication_date"]),
		HTMLURL:                str(record, "html_url"),
		PDFURL:                 str(record, "pdf_url"),
		PublicInspectionPDFURL: str(record, "public_inspection_pdf_url"),
		AgencyName:             agency(record["agencies"]),
		Excerpts:               excerpts(record["excerpts"]),
	}
}

func str(record map[string]any, key string) string {
	v, _ := record[key].(string)
	return v
}

// agency takes raw_name of the first listed agency.
func agency(v any) string {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return ""
	}
	first, ok := list[0].(map[string]any)
	if !ok {
		return ""
	}
	name, _ := first["raw_name"].(string)
	return name
}

func date(v any) string {
	s, ok := v.(string)
	if !ok || len(s) < len(dateLayout) {
		return ""
	}
	s = s[:len(dateLayout)]
	if _, err := time.Parse(dateLayout, s); err != nil {
		return ""
	}
	return s
}

func excerpts(v any) string {
	switch e := v.(type) {
	case string:
		return e
	case []any:
		parts := make([]string, 0, len(e))
		for _, item := range e {
			if s, ok := item.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ExcerptSeparator)
	}
	return ""
}
