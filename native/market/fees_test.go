package market

import (
	"math/big"
	"testing"
)

func TestSaleFeeFloors(t *testing.T) {
	cases := []struct {
		name  string
		price *big.Int
		want  *big.Int
	}{
		{"nil", nil, big.NewInt(0)},
		{"zero", big.NewInt(0), big.NewInt(0)},
		{"below one percent unit", big.NewInt(99), big.NewInt(0)},
		{"exact percent", big.NewInt(100), big.NewInt(1)},
		{"floors remainder", big.NewInt(199), big.NewInt(1)},
		{"one token", tenths(10), new(big.Int).Div(tenths(10), big.NewInt(100))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SaleFee(tc.price); got.Cmp(tc.want) != 0 {
				t.Fatalf("SaleFee(%v) = %s, want %s", tc.price, got, tc.want)
			}
		})
	}
}

func TestSaleSplitsSumToPrice(t *testing.T) {
	prices := []*big.Int{
		big.NewInt(1),
		big.NewInt(99),
		big.NewInt(100),
		big.NewInt(101),
		tenths(10),
		tenths(12345),
	}
	for _, price := range prices {
		sum := new(big.Int).Add(SaleFee(price), SaleProceeds(price))
		if sum.Cmp(price) != 0 {
			t.Fatalf("fee + proceeds = %s for price %s", sum, price)
		}
	}
}

func TestCancelFineFloors(t *testing.T) {
	cases := []struct {
		name    string
		current *big.Int
		want    *big.Int
	}{
		{"nil", nil, big.NewInt(0)},
		{"negative", big.NewInt(-5), big.NewInt(0)},
		{"below one fine unit", big.NewInt(9), big.NewInt(0)},
		{"exact tenth", big.NewInt(10), big.NewInt(1)},
		{"floors remainder", big.NewInt(19), big.NewInt(1)},
		{"one token", tenths(10), tenths(1)},
		{"two tokens", tenths(20), tenths(2)},
		{"three tokens", tenths(30), tenths(3)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CancelFine(tc.current); got.Cmp(tc.want) != 0 {
				t.Fatalf("CancelFine(%v) = %s, want %s", tc.current, got, tc.want)
			}
		})
	}
}
