package extract

import "errors"

// Extraction error taxonomy. Workbook errors surface synchronously to the
// uploader as 4xx; structuring errors route the bill to parsing_failed.
var (
	// ErrMalformedWorkbook means the workbook does not have the expected
	// two-sheet layout (dealer metadata + item rows) or a sheet is empty.
	ErrMalformedWorkbook = errors.New("malformed dealer workbook")

	// ErrMissingRequiredField means the dealer metadata sheet lacks the
	// dealer name or invoice date. A malformed metadata sheet aborts the
	// whole bill rather than guessing.
	ErrMissingRequiredField = errors.New("missing required dealer field")

	// ErrStructuring means the language model response could not be parsed
	// into the expected bill shape.
	ErrStructuring = errors.New("failed to structure bill text")
)
