// internal/discovery/known.go
package discovery

import (
	"strconv"
	"strings"

	"ecf-service/internal/model"
)

type vendor struct {
	brand    model.DeviceBrand
	name     string
	products map[uint16]string
}

// knownVendors maps USB vendor ids to brands, and product ids to the model
// names used by the driver registry.
var knownVendors = map[uint16]vendor{
	0x04b8: {model.BrandEpson, "Seiko Epson Corporation", map[uint16]string{0x0e15: "TMT20"}},
	0x0b1b: {model.BrandBematech, "Bematech", nil},
	0x20d1: {model.BrandElgin, "Elgin", nil},
	0x154f: {model.BrandSNBC, "SNBC", nil},
}

// Identify returns the brand and model for a USB vendor/product pair. ok
// is false for unknown vendors; model is empty when only the vendor is
// known.
func Identify(vendorID, productID uint16) (brand model.DeviceBrand, deviceModel string, confidence float64, ok bool) {
	v, found := knownVendors[vendorID]
	if !found {
		return "", "", 0, false
	}
	if m, found := v.products[productID]; found {
		return v.brand, m, 1, true
	}
	return v.brand, "", 0.5, true
}

// IdentifyHex is Identify for ids written as hex strings, with or without
// a 0x prefix.
func IdentifyHex(vendorID, productID string) (model.DeviceBrand, string, float64, bool) {
	vid, err := parseHex(vendorID)
	if err != nil {
		return "", "", 0, false
	}
	pid, err := parseHex(productID)
	if err != nil {
		return "", "", 0, false
	}
	return Identify(vid, pid)
}

// VendorName returns the vendor description for a known vendor id.
func VendorName(vendorID uint16) string {
	return knownVendors[vendorID].name
}

func parseHex(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	return uint16(v), err
}
