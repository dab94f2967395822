// Package pricing derives tax-inclusive amounts from tax-exclusive ones.
package pricing

import "math"

// DefaultTVA is the VAT rate, in percent, of a new quote.
const DefaultTVA = 10.0

// Round2 rounds to cents, half away from zero.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// TTC returns ht increased by tva percent, rounded to cents.
func TTC(ht, tva float64) float64 {
	return Round2(ht * (1 + tva/100))
}

// Amounts is a self-consistent HT/TVA/TTC triple.
type Amounts struct {
	HT  float64 `json:"montant_ht"`
	TVA float64 `json:"tva_pct"`
	TTC float64 `json:"montant_ttc"`
}

// NewAmounts starts a quote: zero HT at the default rate.
func NewAmounts() Amounts {
	return Amounts{TVA: DefaultTVA}
}

// SetHT changes the tax-exclusive amount and recomputes TTC.
func (a *Amounts) SetHT(ht float64) {
	a.HT = ht
	a.TTC = TTC(a.HT, a.TVA)
}

// SetTVA changes the rate and recomputes TTC.
func (a *Amounts) SetTVA(tva float64) {
	a.TVA = tva
	a.TTC = TTC(a.HT, a.TVA)
}

// VAT is the tax part of the amounts.
func (a Amounts) VAT() float64 {
	return Round2(a.TTC - a.HT)
}
