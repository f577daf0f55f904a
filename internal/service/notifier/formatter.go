package notifier

import (
	"fmt"
	"html"
	"strings"

	"StockWatch/internal/domain/models"
)

// FormatRecommendation renders a recommendation as a Telegram HTML message.
func FormatRecommendation(rec *models.Recommendation) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📉 <b>%s</b>", html.EscapeString(rec.Ticker)))
	if rec.CompanyName != "" {
		b.WriteString(fmt.Sprintf(" | %s", html.EscapeString(rec.CompanyName)))
	}
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Last close: %s\n", rec.LatestClose.StringFixed(2)))
	if rec.DeclinedLast3Days {
		b.WriteString("• declined 3 days in a row\n")
	}
	if rec.MoreThan2DeclinesLast5Days {
		b.WriteString("• more than 2 declines in the last 5 days\n")
	}
	if !rec.CreatedAt.IsZero() {
		b.WriteString(fmt.Sprintf("\n<i>%s</i>", rec.CreatedAt.Format("2006-01-02 15:04")))
	}
	return b.String()
}
