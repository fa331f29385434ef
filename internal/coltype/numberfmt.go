package coltype

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/rzpsarthak13/ultratable/internal/core"
)

// maxFraction bounds "as many decimals as needed" formatting.
const maxFraction = 6

// maxDecimals is the largest fixed precision a column config may ask for.
const maxDecimals = 10

// localeTag resolves the column's "locale" entry, defaulting to English.
func localeTag(cfg core.Config) language.Tag {
	tag, err := language.Parse(cfg.String("locale", "en"))
	if err != nil {
		return language.English
	}
	return tag
}

// formatDecimal renders f with locale grouping. decimals < 0 means "as many
// as needed" up to maxFraction.
func formatDecimal(f float64, decimals int, cfg core.Config) string {
	decimals = min(decimals, maxDecimals)
	if !cfg.Bool("thousandsSeparator", true) {
		return formatPlain(f, decimals)
	}
	minDigits, maxDigits := decimals, decimals
	if decimals < 0 {
		minDigits, maxDigits = 0, maxFraction
	}
	p := message.NewPrinter(localeTag(cfg))
	return p.Sprint(number.Decimal(f,
		number.MinFractionDigits(minDigits),
		number.MaxFractionDigits(maxDigits),
	))
}

// formatPlain renders f without grouping.
func formatPlain(f float64, decimals int) string {
	decimals = min(decimals, maxDecimals)
	if decimals < 0 {
		s := strconv.FormatFloat(roundTo(f, maxFraction), 'f', -1, 64)
		return s
	}
	return strconv.FormatFloat(f, 'f', decimals, 64)
}

// formatCurrency renders a signed amount with the configured symbol.
func formatCurrency(f float64, cfg core.Config) string {
	decimals := cfg.Int("decimals", 2)
	symbol := cfg.String("symbol", "")
	if symbol == "" {
		symbol = cfg.String("currency", "USD") + " "
	}
	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}
	return sign + symbol + formatDecimal(f, decimals, cfg)
}

// validCurrency reports whether code is a known ISO 4217 code.
func validCurrency(code string) bool {
	_, err := currency.ParseISO(code)
	return err == nil
}

// parseNumberInput strips grouping, prefixes, suffixes and currency symbols
// from free-text numeric input.
func parseNumberInput(input string, cfg core.Config) (float64, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, false
	}
	for _, affix := range []string{cfg.String("prefix", ""), cfg.String("suffix", ""), cfg.String("symbol", ""), cfg.String("currency", "")} {
		if affix != "" {
			s = strings.ReplaceAll(s, affix, "")
		}
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		f = -f
	}
	return f, true
}

func roundTo(f float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(f*p) / p
}
