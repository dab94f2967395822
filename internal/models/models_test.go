package models

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/toiture-backoffice/internal/status"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func ptr[T any](v T) *T { return &v }

func TestLead_QuoteSource(t *testing.T) {
	tests := []struct {
		name string
		lead Lead
		want string
	}{
		{"nothing", Lead{}, QuoteAutomatic},
		{"estimate only", Lead{BudgetEstime: ptr(8000.0)}, QuoteFromEstimatedBudget},
		{"negotiated wins over estimate", Lead{BudgetEstime: ptr(8000.0), BudgetNegocie: ptr(7000.0)}, QuoteFromNegotiatedBudget},
		{"custom lines win over budgets", Lead{
			BudgetNegocie:     ptr(7000.0),
			LignesDevisCustom: []DevisLine{{Designation: "Tuiles", Quantite: 10, Unite: "m²", PrixUnitaireHT: 45}},
		}, QuoteFromCustomLines},
		{"empty lines are no override", Lead{BudgetEstime: ptr(1.0), LignesDevisCustom: []DevisLine{}}, QuoteFromEstimatedBudget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.lead.QuoteSource(); got != tt.want {
				t.Errorf("QuoteSource() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLead_EffectiveBudget(t *testing.T) {
	l := Lead{BudgetEstime: ptr(8000.0)}
	if got := l.EffectiveBudget(); got == nil || *got != 8000 {
		t.Fatalf("expected estimate, got %v", got)
	}
	l.BudgetNegocie = ptr(7500.0)
	if got := l.EffectiveBudget(); *got != 7500 {
		t.Errorf("expected negotiated budget, got %v", *got)
	}
	if (Lead{}).EffectiveBudget() != nil {
		t.Error("expected nil budget")
	}
}

func TestLead_FullNameAndLinesTotal(t *testing.T) {
	if got := (Lead{Nom: "Dupont", Prenom: "Jean"}).FullName(); got != "Dupont Jean" {
		t.Errorf("FullName = %q", got)
	}
	if got := (Lead{Nom: "Dupont"}).FullName(); got != "Dupont" {
		t.Errorf("FullName without prenom = %q", got)
	}
	l := Lead{LignesDevisCustom: []DevisLine{
		{Quantite: 2, PrixUnitaireHT: 10.005},
		{Quantite: 1.5, PrixUnitaireHT: 100},
	}}
	if got := l.CustomLinesTotal(); got != 170.01 {
		t.Errorf("CustomLinesTotal = %v", got)
	}
}

func TestLead_StatusNormalizedOnSaveAndRead(t *testing.T) {
	db := openTestDB(t)
	l := Lead{Nom: "Martin", Statut: "Qualifié"}
	if err := db.Create(&l).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if l.ID == "" {
		t.Fatal("expected generated id")
	}
	if l.Statut != status.LeadQualifie {
		t.Errorf("expected canonical status on save, got %q", l.Statut)
	}

	// a row written by another client with a legacy spelling
	if err := db.Exec("UPDATE leads SET statut = ? WHERE id = ?", "Devis envoyé", l.ID).Error; err != nil {
		t.Fatalf("raw update: %v", err)
	}
	var got Lead
	if err := db.First(&got, "id = ?", l.ID).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Statut != status.LeadDevisEnvoye {
		t.Errorf("expected normalized status on read, got %q", got.Statut)
	}
}

func TestLead_CustomLinesPersist(t *testing.T) {
	db := openTestDB(t)
	notes := "Accès par la cour"
	l := Lead{Nom: "Bernard", LignesDevisCustom: []DevisLine{{Designation: "Zinc", Quantite: 3, Unite: "ml", PrixUnitaireHT: 30}}, NotesDevisCustom: &notes}
	if err := db.Create(&l).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	var got Lead
	if err := db.First(&got, "id = ?", l.ID).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got.LignesDevisCustom) != 1 || got.LignesDevisCustom[0].Designation != "Zinc" {
		t.Errorf("lines not persisted: %+v", got.LignesDevisCustom)
	}
	if got.NotesDevisCustom == nil || *got.NotesDevisCustom != notes {
		t.Errorf("notes not persisted: %v", got.NotesDevisCustom)
	}
}

func TestDevis_NumberingAndAmounts(t *testing.T) {
	db := openTestDB(t)
	day := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	d1 := Devis{ClientNom: "Dupont", MontantHT: 1000, TVAPct: 10, DateCreation: day}
	if err := db.Create(&d1).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if d1.Numero != "DEV-2025-0001" {
		t.Errorf("first numero = %q", d1.Numero)
	}
	if d1.MontantTTC != 1100 {
		t.Errorf("TTC not derived on save: %v", d1.MontantTTC)
	}
	if d1.Statut != status.DevisEnvoye {
		t.Errorf("default status = %q", d1.Statut)
	}

	d2 := Devis{ClientNom: "Martin", MontantHT: 99.99, TVAPct: 20, DateCreation: day}
	if err := db.Create(&d2).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if d2.Numero != "DEV-2025-0002" {
		t.Errorf("second numero = %q", d2.Numero)
	}
	if d2.MontantTTC != 119.99 {
		t.Errorf("TTC = %v, want 119.99", d2.MontantTTC)
	}

	d3 := Devis{Numero: "IMPORT-7", ClientNom: "Petit", DateCreation: day}
	if err := db.Create(&d3).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if d3.Numero != "IMPORT-7" {
		t.Errorf("explicit numero overwritten: %q", d3.Numero)
	}
}

func TestNextDevisNumero_ComparesNumerically(t *testing.T) {
	db := openTestDB(t)
	day := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	for _, n := range []string{"DEV-2026-9999", "DEV-2026-10000", "DEV-2026-0042", "DEV-2026-draft", "DEV-2025-20000"} {
		if err := db.Create(&Devis{Numero: n, ClientNom: "Client", DateCreation: day}).Error; err != nil {
			t.Fatalf("seed %s: %v", n, err)
		}
	}
	got, err := NextDevisNumero(db, 2026)
	if err != nil {
		t.Fatal(err)
	}
	if got != "DEV-2026-10001" {
		t.Errorf("next = %q, want DEV-2026-10001", got)
	}

	d := Devis{ClientNom: "Suivant", DateCreation: day}
	if err := db.Create(&d).Error; err != nil {
		t.Fatalf("insert after 10000: %v", err)
	}
	if d.Numero != "DEV-2026-10001" {
		t.Errorf("assigned %q", d.Numero)
	}
}

func TestDevis_SettersKeepOtherInput(t *testing.T) {
	d := NewDevis()
	if d.TVAPct != 10 || d.MontantHT != 0 {
		t.Fatalf("unexpected defaults %+v", d)
	}
	d.SetMontantHT(250)
	if d.TVAPct != 10 || d.MontantTTC != 275 {
		t.Errorf("after SetMontantHT: %+v", d.Amounts())
	}
	d.SetTVAPct(5.5)
	if d.MontantHT != 250 || d.MontantTTC != 263.75 {
		t.Errorf("after SetTVAPct: %+v", d.Amounts())
	}
}

func TestDevis_PrefillFromLead(t *testing.T) {
	var d Devis
	d.PrefillFromLead(Lead{Base: Base{ID: "l1"}, Nom: "Durand", Prenom: "Anne", Email: "a@d.fr", Telephone: "0601", Adresse: "1 rue"})
	if d.ClientNom != "Durand Anne" || d.ClientEmail != "a@d.fr" || d.ClientTelephone != "0601" || d.ClientAdresse != "1 rue" {
		t.Errorf("unexpected prefill %+v", d)
	}
	if d.LeadID == nil || *d.LeadID != "l1" {
		t.Errorf("lead id not set")
	}
}
