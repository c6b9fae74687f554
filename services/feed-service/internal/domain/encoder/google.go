package encoder

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/models"
)

// GoogleNamespace пространство имен g: в фиде Google Shopping
const GoogleNamespace = "http://base.google.com/ns/1.0"

const xmlDeclaration = `<?xml version="1.0"?>` + "\n"

// GoogleShopping RSS 2.0 фид для Google Merchant Center
type GoogleShopping struct{}

func (GoogleShopping) Extension() string { return "xml" }

func (GoogleShopping) Open(w io.Writer, fc Context) (Writer, error) {
	if _, err := io.WriteString(w, xmlDeclaration); err != nil {
		return nil, err
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	gw := &googleWriter{enc: enc, fc: fc}
	if err := gw.header(); err != nil {
		return nil, err
	}
	return gw, nil
}

// field простой текстовый элемент записи
type field struct{ name, value string }

type googleWriter struct {
	enc    *xml.Encoder
	fc     Context
	closed bool
}

func element(name string) xml.StartElement {
	return xml.StartElement{Name: xml.Name{Local: name}}
}

func (g *googleWriter) header() error {
	rss := xml.StartElement{
		Name: xml.Name{Local: "rss"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns:g"}, Value: GoogleNamespace},
			{Name: xml.Name{Local: "version"}, Value: "2.0"},
		},
	}
	if err := g.enc.EncodeToken(rss); err != nil {
		return err
	}
	if err := g.enc.EncodeToken(element("channel")); err != nil {
		return err
	}

	tenant := g.fc.Tenant
	fields := []field{
		{"title", fmt.Sprintf("%s product catalog", tenant.Code)},
		{"link", tenant.ShopURL},
		{"description", fmt.Sprintf("All products for %s", tenant.Code)},
	}
	for _, f := range fields {
		if err := g.enc.EncodeElement(f.value, element(f.name)); err != nil {
			return err
		}
	}
	return g.enc.Flush()
}

func (g *googleWriter) Append(v *models.Variant, stock models.Stock) error {
	if g.closed {
		return errWriterClosed
	}

	item := element("item")
	if err := g.enc.EncodeToken(item); err != nil {
		return err
	}

	fields := []field{
		{"g:id", v.SKU},
		{"g:title", v.Name},
		{"g:description", v.Description},
		{"g:link", g.fc.ProductURL(v)},
	}
	if preview := v.ImagePreview(); preview != "" {
		fields = append(fields, field{"g:image_link", g.fc.AssetURL(preview)})
	}
	fields = append(fields,
		field{"g:price", formatPrice(v.PriceWithTax, v.CurrencyCode)},
		field{"g:availability", g.fc.Availability(v, stock)},
	)

	for _, f := range fields {
		if err := g.enc.EncodeElement(f.value, element(f.name)); err != nil {
			return err
		}
	}

	if err := g.enc.EncodeToken(item.End()); err != nil {
		return err
	}
	return g.enc.Flush()
}

func (g *googleWriter) Close() error {
	if g.closed {
		return errWriterClosed
	}
	g.closed = true

	for _, name := range []string{"channel", "rss"} {
		if err := g.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: name}}); err != nil {
			return err
		}
	}
	return g.enc.Flush()
}
