package out

import (
	"context"
	"fmt"

	coachout "osl/internal/modules/coach/port/out"
	"rsc.io/pdf"
)

type PDFPageCounter struct{}

func NewPDFPageCounter() coachout.PageCounter {
	return PDFPageCounter{}
}

func (PDFPageCounter) CountPages(_ context.Context, path string) (int, error) {
	doc, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	total := doc.NumPage()
	if total <= 0 {
		return 0, fmt.Errorf("pdf %s has no pages", path)
	}
	return total, nil
}
