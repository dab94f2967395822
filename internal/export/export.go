// Package export writes the lead and quote lists as XLSX workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/diewo77/toiture-backoffice/internal/models"
	"github.com/diewo77/toiture-backoffice/internal/status"
)

const dateLayout = "02/01/2006"

var (
	leadHeader  = []any{"Nom", "Prénom", "Email", "Téléphone", "Ville", "Statut", "Type de projet", "Budget", "Source du devis", "Créé le"}
	devisHeader = []any{"Numéro", "Client", "Email", "Montant HT", "TVA %", "Montant TTC", "Statut", "Date", "Validité"}
)

// ContentType of the written workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteLeads writes one row per lead under a header row.
func WriteLeads(w io.Writer, leads []models.Lead) error {
	rows := make([][]any, len(leads))
	for i, l := range leads {
		var budget any
		if b := l.EffectiveBudget(); b != nil {
			budget = *b
		}
		rows[i] = []any{
			l.Nom, l.Prenom, l.Email, l.Telephone, l.Ville,
			status.Present(string(l.Statut)).Label,
			l.TypeProjet, budget, l.QuoteSource(),
			l.CreatedAt.Format(dateLayout),
		}
	}
	return write(w, "Leads", leadHeader, rows)
}

// WriteDevis writes one row per quote, amounts as numbers.
func WriteDevis(w io.Writer, devis []models.Devis) error {
	rows := make([][]any, len(devis))
	for i, d := range devis {
		var validite any
		if d.DateValidite != nil {
			validite = d.DateValidite.Format(dateLayout)
		}
		rows[i] = []any{
			d.Numero, d.ClientNom, d.ClientEmail,
			d.MontantHT, d.TVAPct, d.MontantTTC,
			status.Present(string(d.Statut)).Label,
			d.DateCreation.Format(dateLayout), validite,
		}
	}
	return write(w, "Devis", devisHeader, rows)
}

func write(w io.Writer, sheet string, header []any, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return err
	}
	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
