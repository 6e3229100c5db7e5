package service

import (
	"fmt"

	"age-verification-gateway/config"
	"age-verification-gateway/internal/core/domain"

	"github.com/shopspring/decimal"
)

// DefaultPrices applies when configuration leaves a method unpriced.
var DefaultPrices = map[domain.VerificationMethod]decimal.Decimal{
	domain.MethodBankID:     decimal.NewFromInt(20),
	domain.MethodMojeID:     decimal.NewFromInt(15),
	domain.MethodOCR:        decimal.NewFromInt(10),
	domain.MethodFaceScan:   decimal.NewFromInt(8),
	domain.MethodRevalidate: decimal.NewFromInt(2),
}

// PricingTable maps a verification method to what one check costs.
type PricingTable struct {
	currency string
	prices   map[domain.VerificationMethod]decimal.Decimal
}

// NewPricingTable builds the table from configuration on top of DefaultPrices.
// Unknown method names, non-positive prices and sub-cent prices are rejected.
func NewPricingTable(cfg config.PricingConfig) (*PricingTable, error) {
	prices := make(map[domain.VerificationMethod]decimal.Decimal, len(DefaultPrices))
	for m, p := range DefaultPrices {
		prices[m] = p
	}

	for name, raw := range cfg.Methods {
		method, err := domain.ParseVerificationMethod(name)
		if err != nil {
			return nil, fmt.Errorf("pricing: %w", err)
		}
		if method == domain.MethodRevalidate {
			return nil, fmt.Errorf("pricing: revalidate is priced by pricing.revalidate")
		}
		price, err := parsePrice(raw)
		if err != nil {
			return nil, fmt.Errorf("pricing %s: %w", name, err)
		}
		prices[method] = price
	}

	if cfg.Revalidate != "" {
		price, err := parsePrice(cfg.Revalidate)
		if err != nil {
			return nil, fmt.Errorf("pricing revalidate: %w", err)
		}
		prices[domain.MethodRevalidate] = price
	}

	return &PricingTable{currency: cfg.Currency, prices: prices}, nil
}

// Price returns the cost of one verification with method.
func (p *PricingTable) Price(method domain.VerificationMethod) (decimal.Decimal, bool) {
	price, ok := p.prices[method]
	return price, ok
}

// Revalidate returns the fixed revalidation price.
func (p *PricingTable) Revalidate() decimal.Decimal {
	return p.prices[domain.MethodRevalidate]
}

func (p *PricingTable) Currency() string { return p.currency }

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q: %w", raw, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("price must be positive, got %s", raw)
	}
	if !wholeCents(price) {
		return decimal.Zero, fmt.Errorf("price %s has more than %d decimal places", raw, moneyScale)
	}
	return price, nil
}
