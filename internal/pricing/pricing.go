// Package pricing converts token quantities into settlement amounts.
//
// All money math is integer: the product quantity*priceTotal is taken in 256 bits
// and floored on division, so RequiredPayment(total) == priceTotal exactly and the
// result is non-decreasing in quantity. Decimal values are for display only.
package pricing

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"otc-swaps/internal/domain"
)

// LamportsPerSOL is the settlement currency scale.
const LamportsPerSOL = 1_000_000_000

var (
	// ErrZeroTotal is returned when the swap total amount is zero.
	ErrZeroTotal = errors.New("pricing: total amount is zero")

	// ErrQuantityExceedsTotal is returned when quantity > totalAmount.
	ErrQuantityExceedsTotal = errors.New("pricing: quantity exceeds total amount")
)

// Quote is the settlement amount for a quantity.
type Quote struct {
	Quantity  uint64          `json:"quantity"`
	Payment   uint64          `json:"payment"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// RequiredPayment returns floor(quantity * priceTotal / totalAmount).
func RequiredPayment(quantity, priceTotal, totalAmount uint64) (uint64, error) {
	if totalAmount == 0 {
		return 0, ErrZeroTotal
	}
	if quantity > totalAmount {
		return 0, ErrQuantityExceedsTotal
	}

	product := new(uint256.Int).Mul(uint256.NewInt(quantity), uint256.NewInt(priceTotal))
	product.Div(product, uint256.NewInt(totalAmount))

	// quantity <= totalAmount bounds the result by priceTotal.
	return product.Uint64(), nil
}

// RequiredPaymentFor prices quantity against a swap's fixed ratio.
func RequiredPaymentFor(r *domain.SwapRecord, quantity uint64) (uint64, error) {
	return RequiredPayment(quantity, r.PriceTotal, r.TotalAmount)
}

// QuoteFor builds a display quote for quantity.
func QuoteFor(r *domain.SwapRecord, quantity uint64) (Quote, error) {
	payment, err := RequiredPaymentFor(r, quantity)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		Quantity:  quantity,
		Payment:   payment,
		UnitPrice: UnitPrice(r.PriceTotal, r.TotalAmount, 12),
	}, nil
}

// UnitPrice returns priceTotal/totalAmount rounded to places decimals.
// Display only; never feed it back into settlement.
func UnitPrice(priceTotal, totalAmount uint64, places int32) decimal.Decimal {
	if totalAmount == 0 {
		return decimal.Zero
	}
	return fromUint64(priceTotal).DivRound(fromUint64(totalAmount), places)
}

// FormatSOL renders lamports as a SOL amount string.
func FormatSOL(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9).String()
}

func fromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
