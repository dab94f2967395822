package pricing

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestTTC(t *testing.T) {
	cases := []struct {
		ht, tva, want float64
	}{
		{0, 10, 0},
		{100, 10, 110},
		{100, 20, 120},
		{1234.56, 5.5, 1302.46},
		{99.99, 10, 109.99},
		{10, 0, 10},
		{1000, 2.1, 1021},
	}
	for _, c := range cases {
		if got := TTC(c.ht, c.tva); !almostEqual(got, c.want) {
			t.Errorf("TTC(%v, %v) = %v, want %v", c.ht, c.tva, got, c.want)
		}
	}
}

func TestTTCMatchesRoundedFormula(t *testing.T) {
	for ht := 0.0; ht <= 500; ht += 13.37 {
		for tva := 0.0; tva <= 25; tva += 2.5 {
			want := math.Round(ht*(1+tva/100)*100) / 100
			if got := TTC(ht, tva); !almostEqual(got, want) {
				t.Fatalf("TTC(%v, %v) = %v, want %v", ht, tva, got, want)
			}
		}
	}
}

func TestAmountsRecomputeWithoutTouchingOtherInput(t *testing.T) {
	a := NewAmounts()
	if a.TVA != DefaultTVA || a.HT != 0 || a.TTC != 0 {
		t.Fatalf("unexpected defaults: %+v", a)
	}
	a.SetHT(200)
	if a.TVA != DefaultTVA || !almostEqual(a.TTC, 220) {
		t.Errorf("after SetHT: %+v", a)
	}
	a.SetTVA(20)
	if a.HT != 200 || !almostEqual(a.TTC, 240) {
		t.Errorf("after SetTVA: %+v", a)
	}
	if !almostEqual(a.VAT(), 40) {
		t.Errorf("VAT = %v", a.VAT())
	}
}
