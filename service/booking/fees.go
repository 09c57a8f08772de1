package booking

import "math"

// PlatformFeeRate is the platform's share of every booking amount.
const PlatformFeeRate = 0.10

// SplitFee returns the platform fee and the talent's share of amount,
// rounded to cents. The two parts always sum to amount.
func SplitFee(amount float64) (platformFee, talentAmount float64) {
	cents := math.Round(amount * 100)
	feeCents := math.Round(cents * PlatformFeeRate)
	return feeCents / 100, (cents - feeCents) / 100
}
