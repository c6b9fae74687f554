package models

// Translation перевод полей варианта и продукта
type Translation struct {
	LanguageCode       string `json:"language_code"`
	Name               string `json:"name"`
	ProductName        string `json:"product_name"`
	ProductDescription string `json:"product_description"`
	ProductSlug        string `json:"product_slug"`
}

// Variant денормализованная проекция варианта каталога на момент сборки.
// Цены хранятся в минорных единицах валюты.
type Variant struct {
	ID             string `json:"id"`
	ProductID      string `json:"product_id"`
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	ProductSlug    string `json:"product_slug"`
	Price          int64  `json:"price"`
	PriceWithTax   int64  `json:"price_with_tax"`
	CurrencyCode   string `json:"currency_code"`
	TaxCategoryID  string `json:"tax_category_id,omitempty"`
	FeaturedAsset  string `json:"featured_asset,omitempty"`
	ProductAsset   string `json:"product_asset,omitempty"`
	TrackInventory bool   `json:"track_inventory"`

	Translations []Translation `json:"translations,omitempty"`
}

// ImagePreview возвращает собственное изображение варианта либо изображение продукта
func (v *Variant) ImagePreview() string {
	if v.FeaturedAsset != "" {
		return v.FeaturedAsset
	}
	return v.ProductAsset
}

// Stock доступный остаток варианта
type Stock struct {
	StockOnHand    int `json:"stock_on_hand"`
	StockAllocated int `json:"stock_allocated"`
}
