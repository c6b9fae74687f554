// Package encoder содержит форматы фида. Формат выбирается при конфигурации
// и передается сборщику фида; на каждую сборку открывается отдельный Writer.
package encoder

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/models"
)

// Поддерживаемые форматы
const (
	FormatGoogleXML = "google_xml"
	FormatGoogleTSV = "google_tsv"
)

// Значения доступности товара
const (
	InStock    = "in_stock"
	OutOfStock = "out_of_stock"
)

var errWriterClosed = errors.New("feed writer is closed")

// ProductURLFunc строит ссылку на товар по адресу магазина
type ProductURLFunc func(shopURL string, v *models.Variant) string

// DefaultProductURL возвращает <shop>/<product slug>
func DefaultProductURL(shopURL string, v *models.Variant) string {
	return shopURL + "/" + v.ProductSlug
}

// Options общие настройки форматирования, одинаковые для всех арендаторов
type Options struct {
	AssetURLPrefix string
	ProductURL     ProductURLFunc
	// StrictAvailability включает расчет out_of_stock по остаткам.
	// По умолчанию все позиции выгружаются как in_stock.
	StrictAvailability bool
}

// Context передается формату при открытии фида
type Context struct {
	Tenant  *models.Tenant
	Options Options
}

// ProductURL ссылка на товар для арендатора
func (c Context) ProductURL(v *models.Variant) string {
	fn := c.Options.ProductURL
	if fn == nil {
		fn = DefaultProductURL
	}
	return fn(c.Tenant.TrimmedShopURL(), v)
}

// AssetURL ссылка на изображение по его preview-пути
func (c Context) AssetURL(preview string) string {
	return strings.TrimSpace(c.Options.AssetURLPrefix) + "/" + preview
}

// Availability возвращает значение доступности варианта
func (c Context) Availability(v *models.Variant, stock models.Stock) string {
	if c.Options.StrictAvailability && v.TrackInventory && stock.StockOnHand <= 1 {
		return OutOfStock
	}
	return InStock
}

// Encoder формат фида
type Encoder interface {
	// Extension расширение файла без точки
	Extension() string

	// Open пишет заголовок документа в w и возвращает Writer для записей.
	// w не закрывается: завершение записи в хранилище выполняет вызывающий.
	Open(w io.Writer, fc Context) (Writer, error)
}

// Writer потоковая запись одного документа
type Writer interface {
	// Append добавляет вариант и сбрасывает его в поток
	Append(v *models.Variant, stock models.Stock) error

	// Close завершает документ
	Close() error
}

// New создает формат по имени из конфигурации
func New(format string) (Encoder, error) {
	switch format {
	case FormatGoogleXML, "":
		return GoogleShopping{}, nil
	case FormatGoogleTSV:
		return GoogleShoppingTSV{}, nil
	default:
		return nil, fmt.Errorf("unknown feed format %q", format)
	}
}

// formatPrice переводит минорные единицы в "<amount> <currency>"
func formatPrice(minor int64, currency string) string {
	return strconv.FormatFloat(float64(minor)/100, 'f', -1, 64) + " " + currency
}

// NewProductURLTemplate строит ProductURLFunc из шаблона с подстановками
// {shop}, {slug}, {sku}, {id}, {product_id}. Пустой шаблон дает DefaultProductURL.
func NewProductURLTemplate(tpl string) ProductURLFunc {
	if strings.TrimSpace(tpl) == "" {
		return DefaultProductURL
	}
	return func(shopURL string, v *models.Variant) string {
		r := strings.NewReplacer(
			"{shop}", shopURL,
			"{slug}", v.ProductSlug,
			"{sku}", v.SKU,
			"{id}", v.ID,
			"{product_id}", v.ProductID,
		)
		return r.Replace(tpl)
	}
}
