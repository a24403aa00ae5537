package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var ErrPriceNotFound = errors.New("price not found")

// PriceParser turns raw price text scraped from a page into an amount.
type PriceParser interface {
	ParsePrice(raw string) (float64, error)
}

// LineSplitParser reads prices rendered as "£1,234\n99": the whole part and the
// fraction sit on separate lines and commas group thousands.
type LineSplitParser struct {
	Currency string
}

func NewLineSplitParser(currency string) *LineSplitParser {
	return &LineSplitParser{Currency: currency}
}

func (p *LineSplitParser) ParsePrice(raw string) (float64, error) {
	text := raw
	if p.Currency != "" {
		if idx := strings.Index(text, p.Currency); idx >= 0 {
			text = text[idx+len(p.Currency):]
		}
	}

	lines := strings.Split(strings.TrimSpace(text), "\n")
	text = strings.TrimSpace(lines[0])
	if len(lines) > 1 {
		text = text + "." + strings.TrimSpace(lines[1])
	}

	text = strings.ReplaceAll(text, ",", "")
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("%q: %w", raw, ErrPriceNotFound)
	}

	price, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse price %q: %w", raw, err)
	}

	return price, nil
}

var localeAmount = regexp.MustCompile(`\d+\.?\d*`)

// LocaleParser reads continental prices such as "1.299,00 €", where dots group
// thousands and the comma marks decimals.
type LocaleParser struct {
	Currency string
}

func NewLocaleParser(currency string) *LocaleParser {
	return &LocaleParser{Currency: currency}
}

func (p *LocaleParser) ParsePrice(raw string) (float64, error) {
	text := raw
	if p.Currency != "" {
		text = strings.ReplaceAll(text, p.Currency, "")
	}
	text = strings.ReplaceAll(text, "EUR", "")
	text = strings.TrimSpace(text)

	text = strings.ReplaceAll(text, ".", "")
	text = strings.ReplaceAll(text, ",", ".")

	match := localeAmount.FindString(text)
	if match == "" {
		return 0, fmt.Errorf("%q: %w", raw, ErrPriceNotFound)
	}

	price, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse price %q: %w", raw, err)
	}

	return price, nil
}

// NewPriceParser picks a strategy by name: "split" (default) or "locale".
func NewPriceParser(format, currency string) (PriceParser, error) {
	switch strings.ToLower(format) {
	case "", "split":
		return NewLineSplitParser(currency), nil
	case "locale", "de":
		return NewLocaleParser(currency), nil
	default:
		return nil, fmt.Errorf("unknown price format %q", format)
	}
}
