package reporting

import (
	"fmt"
	"strings"
	"time"

	"otc-swaps/internal/domain"
	"otc-swaps/internal/pricing"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# OTC Swap Activity\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Window: %s to %s\n\n",
		time.Unix(r.RangeStart, 0).UTC().Format(time.RFC3339),
		time.Unix(r.RangeEnd, 0).UTC().Format(time.RFC3339)))

	// Summary
	s := r.Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Swaps Created | %d |\n", s.SwapsCreated))
	sb.WriteString(fmt.Sprintf("| Swaps Filled | %d |\n", s.SwapsFilled))
	sb.WriteString(fmt.Sprintf("| Swaps Cancelled | %d |\n", s.SwapsCancelled))
	sb.WriteString(fmt.Sprintf("| Fills | %d |\n", s.Fills))
	sb.WriteString(fmt.Sprintf("| Unique Buyers | %d |\n", s.UniqueBuyers))
	sb.WriteString(fmt.Sprintf("| Tokens Escrowed | %d |\n", s.TokensEscrowed))
	sb.WriteString(fmt.Sprintf("| Tokens Sold | %d |\n", s.TokensSold))
	sb.WriteString(fmt.Sprintf("| Tokens Refunded | %d |\n", s.TokensRefunded))
	sb.WriteString(fmt.Sprintf("| Settled (SOL) | %s |\n", pricing.FormatSOL(s.LamportsSettled)))
	sb.WriteString("\n")

	// Events
	sb.WriteString("## Events\n\n")
	sb.WriteString("| Type | Count |\n")
	sb.WriteString("|------|-------|\n")
	for _, t := range []domain.EventType{domain.EventTypeCreated, domain.EventTypeExecuted, domain.EventTypeCancelled} {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", t, r.EventCounts[t]))
	}
	sb.WriteString("\n")

	// Swaps
	sb.WriteString("## Swaps\n\n")
	if len(r.Swaps) == 0 {
		sb.WriteString("No swap activity in window.\n")
		return sb.String()
	}
	sb.WriteString("| Swap | Mint | Status | Deposited | Sold | Refunded | Fills | Settled (SOL) | Avg Price |\n")
	sb.WriteString("|------|------|--------|-----------|------|----------|-------|---------------|-----------|\n")
	for _, row := range r.Swaps {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %d | %d | %d | %s | %s |\n",
			shortID(row.SwapID),
			shortID(row.TokenMint),
			row.Status,
			row.Deposited,
			row.Sold,
			row.Refunded,
			row.Fills,
			pricing.FormatSOL(row.LamportsSettled),
			row.AvgPrice.String(),
		))
	}

	return sb.String()
}

// shortID abbreviates a base58 address for tables.
func shortID(id domain.Identity) string {
	s := id.String()
	if len(s) <= 12 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}
