package market

import "math/big"

// Fee and fine policy. All arithmetic uses floor division so the protocol
// never rounds in its own favour beyond the integer remainder.
const (
	saleFeePercent    = 1
	cancelFinePercent = 10
)

// SaleFee returns the protocol skim on a completed fixed-price sale:
// floor(price / 100).
func SaleFee(price *big.Int) *big.Int {
	if price == nil || price.Sign() <= 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(price, big.NewInt(saleFeePercent))
	return fee.Div(fee, big.NewInt(100))
}

// SaleProceeds returns the seller's share of a completed sale. SaleProceeds
// and SaleFee always sum to the price exactly.
func SaleProceeds(price *big.Int) *big.Int {
	if price == nil || price.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Sub(price, SaleFee(price))
}

// CancelFine returns the punitive payment a seller owes to withdraw an active
// record: floor(current * 10 / 100) of the current best price (high bid when
// one exists, otherwise the reserve or list price).
func CancelFine(current *big.Int) *big.Int {
	if current == nil || current.Sign() <= 0 {
		return big.NewInt(0)
	}
	fine := new(big.Int).Mul(current, big.NewInt(cancelFinePercent))
	return fine.Div(fine, big.NewInt(100))
}
