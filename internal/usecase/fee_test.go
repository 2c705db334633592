package usecase

import (
	"math/big"
	"testing"
)

func TestOriginationFee(t *testing.T) {
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	oneEther, _ := new(big.Int).SetString("1000000000000000000", 10)
	cases := []struct {
		name   string
		amount *big.Int
		bps    uint16
		want   string
	}{
		{name: "ten bps of one ether", amount: oneEther, bps: 10, want: "1000000000000000"},
		{name: "zero rate", amount: oneEther, bps: 0, want: "0"},
		{name: "truncates", amount: big.NewInt(9999), bps: 1, want: "0"},
		{name: "truncates toward zero", amount: big.NewInt(19999), bps: 1, want: "1"},
		{name: "full rate", amount: big.NewInt(12345), bps: 10000, want: "12345"},
		{name: "nil amount", amount: nil, bps: 10, want: "0"},
		{name: "no overflow at uint256 max", amount: maxUint256, bps: 10000, want: maxUint256.String()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := OriginationFee(tc.amount, tc.bps)
			if got.String() != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestOriginationFeeDoesNotMutateInput(t *testing.T) {
	amount := big.NewInt(1_000_000)
	_ = OriginationFee(amount, 25)
	if amount.Int64() != 1_000_000 {
		t.Fatalf("input mutated to %s", amount)
	}
}
