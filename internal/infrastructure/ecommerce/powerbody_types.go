package ecommerce

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// flexValue accepts a JSON string, number or null. PowerBody mixes them freely.
type flexValue string

func (v *flexValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*v = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = flexValue(strings.TrimSpace(s))
	case b[0] == '{' || b[0] == '[':
		return fmt.Errorf("powerbody: expected scalar, got %s", string(b[:1]))
	default:
		*v = flexValue(string(b))
	}
	return nil
}

func (v flexValue) String() string {
	return string(v)
}

// powerBodyProduct is one entry of dropshipping.getProductList
type powerBodyProduct struct {
	ProductID   flexValue `json:"product_id"`
	ID          flexValue `json:"id"`
	SKU         flexValue `json:"sku"`
	Name        flexValue `json:"name"`
	RetailPrice flexValue `json:"retail_price"`
	Price       flexValue `json:"price"`
	Qty         flexValue `json:"qty"`
}

// powerBodyDetail is the answer of dropshipping.getProductInfo
type powerBodyDetail struct {
	ProductID    flexValue `json:"product_id"`
	Brand        flexValue `json:"brand"`
	Manufacturer flexValue `json:"manufacturer"`
	Weight       flexValue `json:"weight"`
	EAN          flexValue `json:"ean"`
	Barcode      flexValue `json:"barcode"`
}

// unwrapJSON decodes payloads that arrive as a JSON document serialized inside a JSON string
func unwrapJSON(raw string) []byte {
	data := bytes.TrimSpace([]byte(raw))
	for i := 0; i < 2 && len(data) > 0 && data[0] == '"'; i++ {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			break
		}
		data = bytes.TrimSpace([]byte(inner))
	}
	return data
}
