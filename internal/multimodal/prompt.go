package multimodal

import (
	"fmt"
	"strings"
)

// DefaultExtractionPrompt is the instruction block sent with every page
// unless the caller supplies its own.
const DefaultExtractionPrompt = `You are an expert document classifier and data extractor. Analyze the provided document image and return a strict JSON object with these keys:

1. "documentType" - Classify the document as one of: "invoice", "purchase_order", "receipt", "contract", "report", "form", "letter", or the most appropriate other category.

2. "extractedFields" - Key structured data for that document type:
   - invoices: {"invoiceNumber", "date", "dueDate", "vendor", "total", "tax", "subtotal", "billTo", "items"}
   - purchase orders: {"poNumber", "date", "vendor", "buyer", "total", "items", "deliveryDate", "terms"}
   - receipts: {"store", "date", "total", "tax", "paymentMethod", "items"}
   - contracts: {"parties", "date", "title", "value", "terms", "duration"}
   - anything else: the most relevant fields found

3. "tables" - an array holding EVERY data cell from ALL tables in the document, excluding header rows. Each cell is an object {"row","column","value"}:
   - "row": the EXACT text of the FIRST cell in that row.
   - "column": the EXACT text of the column header for that column.
   - "value": the cell text itself.
   Never use numeric indices or positional terms. Header rows are not cells; they become the column names.

   Example table (header + 1 row):
   Pieces | Pallets | Description
   72     | 9       | SAP Forms

   yields:
   [
     {"row":"72","column":"Pieces","value":"72"},
     {"row":"72","column":"Pallets","value":"9"},
     {"row":"72","column":"Description","value":"SAP Forms"}
   ]

4. "rawText" - plain text of all NON-tabular content in reading order.

5. "confidence" - your confidence in the classification, between 0 and 1.

Return ONLY a valid JSON object. Use actual values when present and null for missing fields.`

// BuildPrompt returns the text part of a page request. An override replaces
// the default instructions wholesale; multi-page documents get a page note.
func BuildPrompt(override string, page, count int) string {
	prompt := strings.TrimSpace(override)
	if prompt == "" {
		prompt = DefaultExtractionPrompt
	}
	if count > 1 {
		prompt += fmt.Sprintf("\n\nNote: This is page %d of %d.", page, count)
	}
	return prompt
}
