package notify

import (
	"context"
	"fmt"
	"strings"

	"farewatch/internal/model"
)

// Notifier delivers a formatted deal message. The engine only produces
// messages for combinations classified store-and-notify and, where the
// provider supports it, validated against an exact-date query.
type Notifier interface {
	Deliver(ctx context.Context, message string) error
}

// FormatDeal renders the notification text for a combination, HTML
// formatted for Telegram.
func FormatDeal(c model.Combination, airline string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✈️ <b>%s</b> | %s\n", airline, c.Destination)
	if c.OneWay() {
		fmt.Fprintf(&b, "📅 Outbound: <b>%s</b>\n", c.OutboundDate.Format(model.DateFormat))
		fmt.Fprintf(&b, "💸 One-way price: <b>$%.2f</b>\n", c.TotalUSD)
	} else {
		fmt.Fprintf(&b, "📅 Outbound: <b>%s</b> | Inbound: <b>%s</b>\n",
			c.OutboundDate.Format(model.DateFormat), c.InboundDate.Format(model.DateFormat))
		fmt.Fprintf(&b, "💸 Outbound: <b>$%.2f</b>", c.OutboundPrice)
		if c.InboundPrice != nil {
			fmt.Fprintf(&b, " | Inbound: <b>$%.2f</b>", *c.InboundPrice)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "💰 Total: <b>$%.2f</b>\n", c.TotalUSD)
	}
	fmt.Fprintf(&b, "<a href=%q>Link</a>", c.BookingLink)
	return b.String()
}
