package reporting

import (
	"fmt"
	"strings"

	"otc-swaps/internal/domain"
)

// RenderSwapsCSV renders per-swap rows as CSV string.
func RenderSwapsCSV(rows []SwapRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("swap_id,seller,token_mint,status,deposited,sold,refunded,fills,")
	sb.WriteString("lamports_settled,avg_price,first_event_at,last_event_at\n")

	// Rows
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%d,%d,%d,%d,%d,%s,%d,%d\n",
			r.SwapID,
			r.Seller,
			r.TokenMint,
			r.Status,
			r.Deposited,
			r.Sold,
			r.Refunded,
			r.Fills,
			r.LamportsSettled,
			r.AvgPrice.String(),
			r.FirstEventAt,
			r.LastEventAt,
		))
	}

	return sb.String()
}

// RenderEventsCSV renders the raw audit trail as CSV string. Absent fields are empty.
func RenderEventsCSV(events []*domain.Event) string {
	var sb strings.Builder

	sb.WriteString("id,type,swap_id,seller,token_mint,amount,occurred_at,buyer,payment,refund,sold,expiry_timestamp\n")

	for _, e := range events {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%d,%d,%s,%s,%s,%s,%s\n",
			e.ID,
			e.Type,
			e.SwapID,
			e.Seller,
			e.TokenMint,
			e.Amount,
			e.OccurredAt,
			optionalIdentity(e.Buyer),
			optional(e.Payment),
			optional(e.Refund),
			optional(e.Sold),
			optional(e.ExpiryTimestamp),
		))
	}

	return sb.String()
}

func optional[T uint64 | int64](v *T) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

func optionalIdentity(id *domain.Identity) string {
	if id == nil {
		return ""
	}
	return id.String()
}
