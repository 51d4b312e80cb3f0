package integration

// VariantIndex is the sku lookup built from a storefront catalog.
// Duplicate skus keep the last variant seen; the displaced variants are kept
// in Duplicates so callers can surface the conflict.
type VariantIndex struct {
	bySKU      map[string]StorefrontVariant
	Duplicates map[string][]StorefrontVariant
}

// NewVariantIndex builds the index. Variants with an empty sku are ignored.
func NewVariantIndex(variants []StorefrontVariant) *VariantIndex {
	idx := &VariantIndex{
		bySKU:      make(map[string]StorefrontVariant, len(variants)),
		Duplicates: make(map[string][]StorefrontVariant),
	}
	for _, v := range variants {
		if v.SKU == "" {
			continue
		}
		if prev, ok := idx.bySKU[v.SKU]; ok {
			idx.Duplicates[v.SKU] = append(idx.Duplicates[v.SKU], prev)
		}
		idx.bySKU[v.SKU] = v
	}
	return idx
}

// Lookup returns the variant for a sku
func (i *VariantIndex) Lookup(sku string) (StorefrontVariant, bool) {
	v, ok := i.bySKU[sku]
	return v, ok
}

// Len returns the number of distinct skus
func (i *VariantIndex) Len() int {
	return len(i.bySKU)
}
