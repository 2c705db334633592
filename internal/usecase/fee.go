package usecase

import "math/big"

const BasisPointsDenominator = 10_000

var basisPoints = big.NewInt(BasisPointsDenominator)

// OriginationFee is floor(lendAmount * feeRateBps / 10000).
func OriginationFee(lendAmount *big.Int, feeRateBps uint16) *big.Int {
	if lendAmount == nil || lendAmount.Sign() <= 0 || feeRateBps == 0 {
		return new(big.Int)
	}
	fee := new(big.Int).Mul(lendAmount, big.NewInt(int64(feeRateBps)))
	return fee.Quo(fee, basisPoints)
}
