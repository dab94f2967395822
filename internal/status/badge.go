package status

// Color is a semantic badge colour.
type Color string

const (
	Gray    Color = "gray"
	Blue    Color = "blue"
	Purple  Color = "purple"
	Green   Color = "green"
	Emerald Color = "emerald"
	Red     Color = "red"
	Orange  Color = "orange"
	Lime    Color = "lime"
)

// UnknownLabel is shown for an empty status.
const UnknownLabel = "Inconnu"

// Badge is how a status is displayed.
type Badge struct {
	Code  string `json:"code"`
	Color Color  `json:"color"`
	Label string `json:"label"`
}

var badges = map[string]Badge{
	"signe":        {"signe", Purple, "Signé"},
	"envoye":       {"envoye", Green, "Envoyé"},
	"accepte":      {"accepte", Emerald, "Accepté"},
	"refuse":       {"refuse", Red, "Refusé"},
	"payes":        {"payes", Blue, "Payés"},
	"nouveau":      {"nouveau", Blue, "Nouveau"},
	"contacte":     {"contacte", Purple, "Contacté"},
	"qualifie":     {"qualifie", Emerald, "Qualifié"},
	"devis_envoye": {"devis_envoye", Orange, "Devis envoyé"},
	"chaud":        {"chaud", Lime, "Chaud"},
	"perdu":        {"perdu", Gray, "Perdu"},
}

// legacyVariants maps spellings found in rows written before statuses were
// normalized on save. Remove once the backfill has run everywhere.
var legacyVariants = map[string]string{
	"signé":        "signe",
	"Signé":        "signe",
	"envoyé":       "envoye",
	"Envoyé":       "envoye",
	"accepté":      "accepte",
	"Accepté":      "accepte",
	"refusé":       "refuse",
	"Refusé":       "refuse",
	"payés":        "payes",
	"Payés":        "payes",
	"contacté":     "contacte",
	"qualifié":     "qualifie",
	"devis_envoyé": "devis_envoye",
}

// Present maps a status code to its badge. It never fails: unknown codes
// get a gray badge echoing the code, and an empty code the "Inconnu" label.
func Present(code string) Badge {
	if b, ok := badges[code]; ok {
		return b
	}
	if canonical, ok := legacyVariants[code]; ok {
		return badges[canonical]
	}
	if code == "" {
		return Badge{Color: Gray, Label: UnknownLabel}
	}
	return Badge{Code: code, Color: Gray, Label: code}
}
