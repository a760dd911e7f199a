package format

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	idTailRe = regexp.MustCompile(`\{ID(\d+)\}`)
)

const DefaultReceiptNumberTemplate = "INV-{YYYY}{MM}{DD}-{ID6}"

// FormatReceiptNumber renders the number printed on an invoice receipt from
// a template, the issue date and the invoice id. {IDn} keeps the last n
// characters of the id.
func FormatReceiptNumber(template string, issuedAt time.Time, id string) (string, error) {
	if template == "" {
		return "", fmt.Errorf("receipt number template is empty")
	}
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("invoice id is empty")
	}

	out := template
	out = strings.ReplaceAll(out, "{YYYY}", issuedAt.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", issuedAt.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", issuedAt.Format("01"))
	out = strings.ReplaceAll(out, "{DD}", issuedAt.Format("02"))
	out = strings.ReplaceAll(out, "{ID}", id)

	out = idTailRe.ReplaceAllStringFunc(out, func(m string) string {
		match := idTailRe.FindStringSubmatch(m)
		width, err := strconv.Atoi(match[1])
		if err != nil || width <= 0 {
			return m
		}
		if len(id) <= width {
			return id
		}
		return id[len(id)-width:]
	})

	if strings.Contains(out, "{") || strings.Contains(out, "}") {
		return "", fmt.Errorf("unresolved token in receipt format: %s", out)
	}
	return out, nil
}

// FormatCurrency renders minor units as US dollars, e.g. 123456 -> "$1,234.56".
func FormatCurrency(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	fixed := decimal.New(cents, -2).StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	return sign + "$" + groupThousands(whole) + "." + frac
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatDate renders a calendar date the way the dashboard shows it.
func FormatDate(t time.Time) string {
	return t.Format("Jan 2, 2006")
}
