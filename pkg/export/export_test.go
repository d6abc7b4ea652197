package export

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:    "Jadwal Mapel",
		Subtitle: "Kelas 7A",
		Headers:  []string{"Hari", "Jam", "Mapel"},
		Rows: []Row{
			{Cells: []string{"Senin", "07:00-07:45", "Matematika-7A"}},
			{Cells: []string{"Senin", "09:15-09:30"}, Muted: true},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "Hari,Jam,Mapel\nSenin,07:00-07:45,Matematika-7A\nSenin,09:15-09:30,\n", string(out))
}

func TestCSVExporterSemicolonAndBOM(t *testing.T) {
	out, err := (&CSVExporter{Comma: ';', BOM: true}).Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, utf8BOM))
	assert.Contains(t, string(out), "Hari;Jam;Mapel")
}

func TestCSVExporterCutsExtraCells(t *testing.T) {
	data := Dataset{Headers: []string{"Hari"}, Rows: []Row{{Cells: []string{"Senin", "ignored"}}}}
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "Hari\nSenin\n", string(out))
}

func TestExportersRequireHeaders(t *testing.T) {
	for _, r := range []Renderer{NewCSVExporter(), NewPDFExporter()} {
		_, err := r.Render(Dataset{})
		assert.True(t, errors.Is(err, ErrNoHeaders), r.Extension())
	}
}

func TestPDFExporterRendersAcrossPages(t *testing.T) {
	data := sampleDataset()
	for i := 0; i < 60; i++ {
		data.Rows = append(data.Rows, Row{Cells: []string{"Selasa", fmt.Sprintf("jam %d", i), "IPA"}, Muted: i%2 == 0})
	}
	out, err := NewPDFExporter().Render(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Equal(t, "application/pdf", NewPDFExporter().ContentType())
}
