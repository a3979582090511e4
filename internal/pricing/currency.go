package pricing

// Supported document currencies. BGN is the primary currency users type
// amounts in; EUR documents store amounts converted once at save time.
const (
	CurrencyBGN = "BGN"
	CurrencyEUR = "EUR"
)

// EURToBGN is the currency-board peg of the lev to the euro. The rate is a
// legal constant, not a market quote, so it is deliberately not configurable.
const EURToBGN = 1.95583

// ToSecondary converts a primary-currency (BGN) amount into EUR. The reverse
// direction is never needed: persisted fields are already in the document's
// declared currency.
func ToSecondary(amount float64) float64 {
	return amount / EURToBGN
}

// IsSupported reports whether code is one of the two document currencies.
func IsSupported(code string) bool {
	return code == CurrencyBGN || code == CurrencyEUR
}
