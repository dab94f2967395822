// Package i18n translates message codes shown to back-office users.
// French is the default language.
package i18n

import (
	"context"
	"fmt"
	"strings"
)

const DefaultLang = "fr"

var catalog = map[string]map[string]string{
	"fr": {
		"required":             "Requis",
		"invalid_email":        "Email invalide",
		"too_short":            "Trop court",
		"must_not_be_negative": "Ne doit pas être négatif",
		"invalid_choice":       "Choix invalide",
		"out_of_range":         "Hors limites",

		"lead_created":      "Lead créé avec succès",
		"lead_updated":      "Lead modifié avec succès",
		"lead_deleted":      "Lead supprimé avec succès",
		"devis_created":     "Devis créé avec succès",
		"devis_updated":     "Devis modifié avec succès",
		"devis_deleted":     "Devis supprimé avec succès",
		"quote_sent":        "Devis Envoyé et statut mis à jour",
		"quote_status_lost": "Devis Envoyé mais erreur lors de la mise à jour du statut",
		"quote_send_failed": "Erreur lors de l'envoi du devis",

		"user_created":       "Utilisateur créé avec succès ! Un email de confirmation a été envoyé.",
		"user_deleted":       "Utilisateur supprimé avec succès",
		"user_create_failed": "Erreur lors de la création de l'utilisateur",
		"user_partial":       "Compte créé sans profil complet : il sera nettoyé automatiquement",
		"role_updated":       "Rôle modifié avec succès",
		"role_update_failed": "Erreur lors de la modification du rôle",
		"email_taken":        "Cet email est déjà utilisé",

		"delete_failed":  "Erreur lors de la suppression",
		"access_denied":  "Accès non autorisé",
		"generic_error":  "Une erreur est survenue",
		"status_unknown": "Inconnu",
		"count_rows":     "%d lignes",
	},
	"en": {
		"required":             "Required",
		"invalid_email":        "Invalid email",
		"too_short":            "Too short",
		"must_not_be_negative": "Must not be negative",
		"invalid_choice":       "Invalid choice",
		"out_of_range":         "Out of range",

		"lead_created":      "Lead created",
		"lead_updated":      "Lead updated",
		"lead_deleted":      "Lead deleted",
		"devis_created":     "Quote created",
		"devis_updated":     "Quote updated",
		"devis_deleted":     "Quote deleted",
		"quote_sent":        "Quote sent and status updated",
		"quote_status_lost": "Quote sent but the status update failed",
		"quote_send_failed": "Could not send the quote",

		"user_created":       "User created. A confirmation email has been sent.",
		"user_deleted":       "User deleted",
		"user_create_failed": "Could not create the user",
		"user_partial":       "Account created without a complete profile; it will be cleaned up automatically",
		"role_updated":       "Role updated",
		"role_update_failed": "Could not update the role",
		"email_taken":        "This email is already in use",

		"delete_failed":  "Delete failed",
		"access_denied":  "Access denied",
		"generic_error":  "Something went wrong",
		"status_unknown": "Unknown",
		"count_rows":     "%d rows",
	},
}

// T translates code into lang, falling back to French and then to the code
// itself. args are applied with fmt.Sprintf when given.
func T(lang, code string, args ...any) string {
	msg, ok := catalog[lang][code]
	if !ok {
		msg, ok = catalog[DefaultLang][code]
	}
	if !ok {
		return code
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}

// DetectLanguage picks a supported language from an Accept-Language header.
func DetectLanguage(acceptLanguage string) string {
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		base, _, _ := strings.Cut(strings.ToLower(tag), "-")
		if _, ok := catalog[base]; ok {
			return base
		}
	}
	return DefaultLang
}

// Supported reports whether lang has a catalogue.
func Supported(lang string) bool {
	_, ok := catalog[lang]
	return ok
}

type ctxKey struct{}

// WithLang stores the request language in ctx.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, ctxKey{}, lang)
}

// LangFromContext returns the request language, French when unset.
func LangFromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(ctxKey{}).(string); ok && Supported(lang) {
		return lang
	}
	return DefaultLang
}
