package models

// Configuration is the company profile printed on quotes. There is one row.
type Configuration struct {
	Base
	NomEntreprise string `gorm:"size:255;not null" json:"nom_entreprise"`
	Adresse       string `gorm:"size:500" json:"adresse,omitempty"`
	Telephone     string `gorm:"size:50" json:"telephone,omitempty"`
	Email         string `gorm:"size:255" json:"email,omitempty"`
	SIRET         string `gorm:"column:siret;size:14" json:"siret,omitempty"`
	TVANumero     string `gorm:"column:tva_numero;size:20" json:"tva_numero,omitempty"`
	LogoURL       string `gorm:"column:logo_url;size:500" json:"logo_url,omitempty"`
}

func (Configuration) TableName() string { return "configurations" }
