package model

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is the decimal exponent of the native token and the yield token.
const DefaultDecimals uint8 = 18

// Amount is a ledger-native integer amount with a fixed decimal exponent.
// Arithmetic always operates on the integer magnitude.
type Amount struct {
	raw      *big.Int
	decimals uint8
}

// NewAmount copies raw into a new Amount. A nil raw value is treated as zero.
func NewAmount(raw *big.Int, decimals uint8) Amount {
	v := new(big.Int)
	if raw != nil {
		v.Set(raw)
	}
	return Amount{raw: v, decimals: decimals}
}

// ZeroAmount returns a zero amount with the given decimals.
func ZeroAmount(decimals uint8) Amount {
	return Amount{raw: new(big.Int), decimals: decimals}
}

// ParseAmount parses an integer string in the smallest unit.
func ParseAmount(raw string, decimals uint8) (Amount, error) {
	if raw == "" {
		return ZeroAmount(decimals), nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return Amount{}, fmt.Errorf("invalid amount: %s", raw)
	}
	return Amount{raw: v, decimals: decimals}, nil
}

// Raw returns a copy of the integer magnitude.
func (a Amount) Raw() *big.Int {
	if a.raw == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.raw)
}

// Decimals returns the decimal exponent.
func (a Amount) Decimals() uint8 {
	return a.decimals
}

// Add returns a + b. Both amounts must share the same exponent.
func (a Amount) Add(b Amount) (Amount, error) {
	if a.decimals != b.decimals {
		return Amount{}, fmt.Errorf("decimals mismatch: %d != %d", a.decimals, b.decimals)
	}
	sum := new(big.Int).Add(a.Raw(), b.Raw())
	return Amount{raw: sum, decimals: a.decimals}, nil
}

// Cmp compares magnitudes, ignoring the exponent.
func (a Amount) Cmp(b Amount) int {
	return a.Raw().Cmp(b.Raw())
}

func (a Amount) Sign() int {
	if a.raw == nil {
		return 0
	}
	return a.raw.Sign()
}

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool {
	return a.Sign() > 0
}

// Decimal converts to an exact decimal for presentation.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(a.Raw(), -int32(a.decimals))
}

// String renders the human readable form with trailing zeros trimmed.
func (a Amount) String() string {
	return a.Decimal().String()
}

// StringFixed renders the human readable form rounded to places digits.
func (a Amount) StringFixed(places int32) string {
	return a.Decimal().StringFixed(places)
}

type amountJSON struct {
	Raw      string `json:"raw"`
	Decimals uint8  `json:"decimals"`
	Display  string `json:"display"`
}

// MarshalJSON keeps the integer magnitude as a string so no precision is lost.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(amountJSON{
		Raw:      a.Raw().String(),
		Decimals: a.decimals,
		Display:  a.String(),
	})
}

// UnmarshalJSON reads the raw magnitude and ignores the display field.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var v amountJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := ParseAmount(v.Raw, v.Decimals)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
