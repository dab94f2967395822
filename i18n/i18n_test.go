package i18n

import (
	"context"
	"testing"
)

func TestDetectLanguage(t *testing.T) {
	if DetectLanguage("en-US,en;q=0.9") != "en" {
		t.Fatalf("expected en")
	}
	if DetectLanguage("EN-gb") != "en" {
		t.Fatalf("expected en for EN-gb")
	}
	if DetectLanguage("de-DE,en;q=0.5") != "en" {
		t.Fatalf("expected en as first supported language")
	}
	if DetectLanguage("fr-FR,fr;q=0.8") != "fr" {
		t.Fatalf("expected fr")
	}
	if DetectLanguage("") != "fr" {
		t.Fatalf("expected default fr")
	}
}

func TestTranslations(t *testing.T) {
	if T("en", "required") != "Required" {
		t.Fatalf("expected Required")
	}
	if T("fr", "required") != "Requis" {
		t.Fatalf("expected Requis")
	}
	if T("en", "__nope__") != "__nope__" {
		t.Fatalf("expected fallback to code")
	}
	if T("es", "required") != "Requis" {
		t.Fatalf("expected fr fallback for es lang")
	}
	if T("fr", "count_rows", 3) != "3 lignes" {
		t.Fatalf("expected formatted message, got %q", T("fr", "count_rows", 3))
	}
}

func TestCataloguesHaveSameKeys(t *testing.T) {
	for code := range catalog["fr"] {
		if _, ok := catalog["en"][code]; !ok {
			t.Errorf("missing en translation for %q", code)
		}
	}
	for code := range catalog["en"] {
		if _, ok := catalog["fr"][code]; !ok {
			t.Errorf("missing fr translation for %q", code)
		}
	}
}

func TestLangFromContext(t *testing.T) {
	ctx := context.Background()
	if LangFromContext(ctx) != "fr" {
		t.Fatalf("expected fr default")
	}
	if LangFromContext(WithLang(ctx, "en")) != "en" {
		t.Fatalf("expected en")
	}
	if LangFromContext(WithLang(ctx, "xx")) != "fr" {
		t.Fatalf("unsupported language must fall back to fr")
	}
}
