package export

import "errors"

// ErrNoHeaders is returned when a dataset has no columns.
var ErrNoHeaders = errors.New("dataset has no headers")

// Dataset is tabular export content.
type Dataset struct {
	Title    string
	Subtitle string
	Headers  []string
	Rows     []Row
}

// Row is one record aligned with Dataset.Headers. Muted rows are rendered
// de-emphasised where the format allows it.
type Row struct {
	Cells []string
	Muted bool
}

// Renderer turns a dataset into a downloadable document.
type Renderer interface {
	Render(data Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// cells returns the row padded or cut to n columns.
func (r Row) cells(n int) []string {
	out := make([]string, n)
	copy(out, r.Cells)
	return out
}
