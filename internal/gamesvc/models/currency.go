package models

// Currency codes for the two platform balances.
// GC is fun-play, SC is prize-redeemable and requires identity verification.
const (
	CurrencyGC = "GC"
	CurrencySC = "SC"
)

func IsRedeemable(currency string) bool {
	return currency == CurrencySC
}
