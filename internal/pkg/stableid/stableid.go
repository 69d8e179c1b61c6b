// Package stableid generates the opaque identifiers that survive backup
// round-trips and key spreadsheet sync rows. Independent of numeric DB ids,
// never reused.
package stableid

import (
	"strings"

	"github.com/google/uuid"
)

// NewItem returns a fresh item identifier (item_<hex16>).
func NewItem() string {
	return gen("item")
}

// NewPay returns a fresh payment-plan identifier (pay_<hex16>).
func NewPay() string {
	return gen("pay")
}

func gen(prefix string) string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + "_" + hex[:16]
}
