// Package ingestion defines the request and response types of the document
// ingestion endpoint, which adds documents to a running corpus.
package ingestion

// IngestRequest is the JSON body accepted by POST /api/v1/documents.
type IngestRequest struct {
	Name string `json:"name"`
	Body string `json:"body"`
}

// IngestResponse is returned once the document is searchable.
type IngestResponse struct {
	DocumentID int    `json:"document_id"`
	Name       string `json:"name"`
	TermCount  int    `json:"term_count"`
	Status     string `json:"status"`
}
