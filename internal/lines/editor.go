// Package lines edits the manual quote lines attached to a lead.
package lines

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/diewo77/toiture-backoffice/internal/models"
	"github.com/diewo77/toiture-backoffice/internal/pricing"
)

// DefaultUnit is the unit of a freshly appended line.
const DefaultUnit = "unité"

var (
	ErrIndex = errors.New("line index out of range")
	ErrField = errors.New("unknown line field")
)

// Field names a line attribute, using its JSON name.
type Field string

const (
	FieldDesignation    Field = "designation"
	FieldQuantite       Field = "quantite"
	FieldUnite          Field = "unite"
	FieldPrixUnitaireHT Field = "prix_unitaire_ht"
)

// Editor holds an ordered list of lines and the notes that go with them.
// Positions shift down when a line is removed.
type Editor struct {
	lines []models.DevisLine
	Notes string
}

// New returns an editor preloaded with lines and notes.
func New(lines []models.DevisLine, notes string) *Editor {
	e := &Editor{}
	e.Load(lines, notes)
	return e
}

// Load replaces the editor content with a copy of lines.
func (e *Editor) Load(lines []models.DevisLine, notes string) {
	e.lines = append([]models.DevisLine(nil), lines...)
	e.Notes = notes
}

// Append adds a blank line: quantity 1, default unit, zero price.
func (e *Editor) Append() int {
	e.lines = append(e.lines, models.DevisLine{Quantite: 1, Unite: DefaultUnit})
	return len(e.lines) - 1
}

// Remove deletes the line at index i.
func (e *Editor) Remove(i int) error {
	if i < 0 || i >= len(e.lines) {
		return fmt.Errorf("%w: %d", ErrIndex, i)
	}
	e.lines = append(e.lines[:i:i], e.lines[i+1:]...)
	return nil
}

// Update sets one field of the line at index i from its text value.
// Numbers accept a comma or a dot as decimal separator; anything
// unparsable counts as 0.
func (e *Editor) Update(i int, field Field, value string) error {
	if i < 0 || i >= len(e.lines) {
		return fmt.Errorf("%w: %d", ErrIndex, i)
	}
	l := &e.lines[i]
	switch field {
	case FieldDesignation:
		l.Designation = value
	case FieldUnite:
		l.Unite = value
	case FieldQuantite:
		l.Quantite = parseNumber(value)
	case FieldPrixUnitaireHT:
		l.PrixUnitaireHT = parseNumber(value)
	default:
		return fmt.Errorf("%w: %q", ErrField, field)
	}
	return nil
}

func parseNumber(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// Len is the number of lines.
func (e *Editor) Len() int { return len(e.lines) }

// Lines returns a copy of the lines.
func (e *Editor) Lines() []models.DevisLine {
	return append([]models.DevisLine(nil), e.lines...)
}

// LineTotal is quantity times unit price of line i, rounded to cents.
func (e *Editor) LineTotal(i int) (float64, error) {
	if i < 0 || i >= len(e.lines) {
		return 0, fmt.Errorf("%w: %d", ErrIndex, i)
	}
	return pricing.Round2(e.lines[i].Total()), nil
}

// GrandTotal sums every line, rounded to cents. An empty editor totals 0.
func (e *Editor) GrandTotal() float64 {
	var total float64
	for _, l := range e.lines {
		total += l.Total()
	}
	return pricing.Round2(total)
}

// Override returns what gets stored on the lead: nil lines when the list
// is empty, and nil notes when they are blank.
func (e *Editor) Override() ([]models.DevisLine, *string) {
	var lines []models.DevisLine
	if len(e.lines) > 0 {
		lines = e.Lines()
	}
	var notes *string
	if n := strings.TrimSpace(e.Notes); n != "" {
		notes = &n
	}
	return lines, notes
}
