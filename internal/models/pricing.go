package models

import "fmt"

func IsOnSale(price float64, saleEnabled bool, salePrice float64) bool {
	return saleEnabled && salePrice > 0 && salePrice < price
}

func EffectivePrice(price float64, saleEnabled bool, salePrice float64) float64 {
	if IsOnSale(price, saleEnabled, salePrice) {
		return salePrice
	}
	return price
}

// ValidateSale rejects sale settings that would not discount the product.
func ValidateSale(price float64, saleEnabled bool, salePrice float64) error {
	if !saleEnabled {
		return nil
	}
	if salePrice <= 0 {
		return fmt.Errorf("salePrice must be greater than 0")
	}
	if salePrice >= price {
		return fmt.Errorf("salePrice must be less than price")
	}
	return nil
}
