package domain

// Document is the canonical, normalized projection of one upstream record.
// Empty strings mean "absent" and are stored as NULL.
type Document struct {
	DocumentNumber         string `json:"document_number"`
	Title                  string `json:"title,omitempty"`
	Type                   string `json:"type,omitempty"`
	Abstract               string `json:"abstract,omitempty"`
	PublicationDate        string `json:"publication_date,omitempty"`
	HTMLURL                string `json:"html_url,omitempty"`
	PDFURL                 string `json:"pdf_url,omitempty"`
	PublicInspectionPDFURL string `json:"public_inspection_pdf_url,omitempty"`
	AgencyName             string `json:"agency_name,omitempty"`
	Excerpts               string `json:"excerpts,omitempty"`
}

// SearchParams narrows a canonical-store lookup. Zero values mean "no filter".
type SearchParams struct {
	Keywords     string
	DocumentType string
	StartDate    string
	EndDate      string
	AgencyName   string
	Limit        int
}

// SearchHit is a document returned by search together with a plain-text snippet.
type SearchHit struct {
	Document
	Snippet string `json:"snippet,omitempty"`
}

// SearchStatus tells callers whether a search produced documents.
type SearchStatus string

const (
	SearchOK        SearchStatus = "ok"
	SearchNoResults SearchStatus = "no_results"
	SearchError     SearchStatus = "error"
)

// SearchResponse carries either documents or a marker message.
type SearchResponse struct {
	Status    SearchStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	Documents []SearchHit  `json:"documents,omitempty"`
}
