package models

// SearchResult is the value cached per (query, vector store) pair.
type SearchResult struct {
	Response string `json:"response"`
	RunID    string `json:"runId"`
	ThreadID string `json:"threadId"`
}
