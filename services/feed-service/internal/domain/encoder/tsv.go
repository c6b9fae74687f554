package encoder

import (
	"encoding/csv"
	"io"

	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/models"
)

var tsvHeader = []string{"id", "title", "description", "link", "image_link", "price", "availability"}

// GoogleShoppingTSV текстовый фид Merchant Center (значения через табуляцию)
type GoogleShoppingTSV struct{}

func (GoogleShoppingTSV) Extension() string { return "tsv" }

func (GoogleShoppingTSV) Open(w io.Writer, fc Context) (Writer, error) {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	tw := &tsvWriter{w: cw, fc: fc}
	if err := tw.write(tsvHeader); err != nil {
		return nil, err
	}
	return tw, nil
}

type tsvWriter struct {
	w      *csv.Writer
	fc     Context
	closed bool
}

func (t *tsvWriter) write(record []string) error {
	if err := t.w.Write(record); err != nil {
		return err
	}
	t.w.Flush()
	return t.w.Error()
}

func (t *tsvWriter) Append(v *models.Variant, stock models.Stock) error {
	if t.closed {
		return errWriterClosed
	}

	image := ""
	if preview := v.ImagePreview(); preview != "" {
		image = t.fc.AssetURL(preview)
	}

	return t.write([]string{
		v.SKU,
		v.Name,
		v.Description,
		t.fc.ProductURL(v),
		image,
		formatPrice(v.PriceWithTax, v.CurrencyCode),
		t.fc.Availability(v, stock),
	})
}

func (t *tsvWriter) Close() error {
	if t.closed {
		return errWriterClosed
	}
	t.closed = true
	t.w.Flush()
	return t.w.Error()
}
