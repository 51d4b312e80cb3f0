package ecommerce

import (
	"github.com/shopspring/decimal"
)

// shopifyProductsPage is one page of GET products.json?fields=id,variants
type shopifyProductsPage struct {
	Products []shopifyProduct `json:"products"`
}

type shopifyProduct struct {
	ID       int64            `json:"id"`
	Variants []shopifyVariant `json:"variants"`
}

type shopifyVariant struct {
	ID                int64           `json:"id"`
	SKU               *string         `json:"sku"`
	Price             decimal.Decimal `json:"price"`
	InventoryItemID   int64           `json:"inventory_item_id"`
	InventoryQuantity *int            `json:"inventory_quantity"`
}

type shopifyVariantUpdate struct {
	Variant shopifyVariantPrice `json:"variant"`
}

type shopifyVariantPrice struct {
	ID    int64  `json:"id"`
	Price string `json:"price"`
}

type shopifyInventorySet struct {
	LocationID      int64 `json:"location_id"`
	InventoryItemID int64 `json:"inventory_item_id"`
	Available       int   `json:"available"`
}

type shopifyLocations struct {
	Locations []struct {
		ID     int64 `json:"id"`
		Active bool  `json:"active"`
	} `json:"locations"`
}

type shopifyTokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Code         string `json:"code"`
}

type shopifyTokenResponse struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope"`
}

type shopifyErrorBody struct {
	Errors any `json:"errors"`
}
