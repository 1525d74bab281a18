package models

// Lane is the processing path a file is routed through.
type Lane string

const (
	LaneText  Lane = "text"
	LaneImage Lane = "image"
	LanePDF   Lane = "pdf"
)

// TableCell uses literal header text as Column and the row's first-cell
// text as Row. Only the CSV path synthesizes "Row {n}" labels.
type TableCell struct {
	Row    string `json:"row"`
	Column string `json:"column"`
	Value  string `json:"value"`
}

type ExtractionResult struct {
	DocumentType    string         `json:"documentType"`
	ExtractedFields map[string]any `json:"extractedFields"`
	Confidence      float64        `json:"confidence"`
	Tables          []TableCell    `json:"tables"`
	RawText         string         `json:"rawText"`
	PageCount       int            `json:"pageCount"`
}

// PageExtraction is the single-page model output before merge.
type PageExtraction struct {
	DocumentType    string         `json:"documentType"`
	ExtractedFields map[string]any `json:"extractedFields"`
	Confidence      *float64       `json:"confidence,omitempty"`
	Tables          []TableCell    `json:"tables"`
	RawText         string         `json:"rawText"`
}

const DocumentTypeOther = "other"
