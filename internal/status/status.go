// Package status holds the closed status vocabularies of leads and quotes
// and their display badges.
package status

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// All is the list-filter value that disables status filtering.
const All = "all"

type LeadStatus string

const (
	LeadNouveau     LeadStatus = "nouveau"
	LeadContacte    LeadStatus = "contacte"
	LeadQualifie    LeadStatus = "qualifie"
	LeadDevisEnvoye LeadStatus = "devis_envoye"
	LeadAccepte     LeadStatus = "accepte"
	LeadRefuse      LeadStatus = "refuse"
	LeadPerdu       LeadStatus = "perdu"
	LeadChaud       LeadStatus = "chaud"
)

var LeadStatuses = []LeadStatus{
	LeadNouveau, LeadContacte, LeadQualifie, LeadDevisEnvoye,
	LeadAccepte, LeadRefuse, LeadPerdu, LeadChaud,
}

type DevisStatus string

const (
	DevisEnvoye  DevisStatus = "envoye"
	DevisSigne   DevisStatus = "signe"
	DevisAccepte DevisStatus = "accepte"
	DevisRefuse  DevisStatus = "refuse"
	DevisPayes   DevisStatus = "payes"
)

var DevisStatuses = []DevisStatus{DevisEnvoye, DevisSigne, DevisAccepte, DevisRefuse, DevisPayes}

// Normalize folds a stored status to its canonical spelling: trimmed,
// lowercased, accents stripped, and runs of spaces, dashes or
// underscores joined by a single underscore. "Devis envoyé" becomes
// "devis_envoye".
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	// transformers carry state, build one per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || unicode.IsSpace(r)
	})
	return strings.Join(parts, "_")
}

// ParseLead normalizes raw and reports whether it is a known lead status.
func ParseLead(raw string) (LeadStatus, bool) {
	s := LeadStatus(Normalize(raw))
	return s, s.Valid()
}

// ParseDevis normalizes raw and reports whether it is a known quote status.
func ParseDevis(raw string) (DevisStatus, bool) {
	s := DevisStatus(Normalize(raw))
	return s, s.Valid()
}

// Valid reports whether s is exactly one of the canonical lead codes.
func (s LeadStatus) Valid() bool {
	for _, known := range LeadStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Valid reports whether s is exactly one of the canonical quote codes.
func (s DevisStatus) Valid() bool {
	for _, known := range DevisStatuses {
		if s == known {
			return true
		}
	}
	return false
}
