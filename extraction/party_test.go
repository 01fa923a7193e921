package extraction

import (
	"strings"
	"testing"
)

func TestExtractParties_LabelOnSameLine(t *testing.T) {
	text := strings.Join([]string{
		"ORIGINAL",
		"FACTURA A 0001-00001234",
		"Razón Social: ACME DISTRIBUCIONES SRL",
		"CUIT: 30-71234567-1",
		"Domicilio Comercial: Av. Corrientes 348, CABA",
	}, "\n")

	parties := ExtractParties(text)
	if len(parties) != 1 {
		t.Fatalf("expected 1 party, got %d", len(parties))
	}
	p := parties[0]
	if p.TaxId != "30712345671" {
		t.Errorf("tax id = %q", p.TaxId)
	}
	if p.LegalName != "ACME DISTRIBUCIONES SRL" {
		t.Errorf("legal name = %q", p.LegalName)
	}
	if p.Address != "Av. Corrientes 348, CABA" {
		t.Errorf("address = %q", p.Address)
	}
	if p.Role != RoleUnknown {
		t.Errorf("role = %q", p.Role)
	}
}

func TestExtractParties_NameOnLineAfterLabel(t *testing.T) {
	text := strings.Join([]string{
		"Señores",
		"Comercial del Sur S.A.",
		"CUIT 20-12345678-6",
	}, "\n")

	parties := ExtractParties(text)
	if len(parties) != 1 {
		t.Fatalf("expected 1 party, got %d", len(parties))
	}
	if parties[0].LegalName != "Comercial del Sur S.A." {
		t.Errorf("legal name = %q", parties[0].LegalName)
	}
	if parties[0].Address != "" {
		t.Errorf("address should be empty, got %q", parties[0].Address)
	}
}

func TestExtractParties_HeuristicNameWithoutLabel(t *testing.T) {
	text := strings.Join([]string{
		"TICKET",
		"Panaderia La Espiga",
		"20-00000001-9",
	}, "\n")

	parties := ExtractParties(text)
	if len(parties) != 1 {
		t.Fatalf("expected 1 party, got %d", len(parties))
	}
	if parties[0].LegalName != "Panaderia La Espiga" {
		t.Errorf("legal name = %q", parties[0].LegalName)
	}
}

func TestExtractParties_AddressBelowBareLabel(t *testing.T) {
	text := strings.Join([]string{
		"Razón Social: Estancia El Ombu SA",
		"CUIT: 20-00000040-0",
		"Domicilio",
		"",
		"Ruta 8 Km 52",
	}, "\n")

	parties := ExtractParties(text)
	if len(parties) != 1 {
		t.Fatalf("expected 1 party, got %d", len(parties))
	}
	if parties[0].Address != "Ruta 8 Km 52" {
		t.Errorf("address = %q", parties[0].Address)
	}
}

func TestExtractParties_InvalidChecksumIgnored(t *testing.T) {
	text := strings.Join([]string{
		"Razón Social: Fantasma SRL",
		"CUIT: 30-12345678-5",
	}, "\n")

	if parties := ExtractParties(text); len(parties) != 0 {
		t.Fatalf("expected no parties for an invalid tax id, got %d", len(parties))
	}
}

func TestExtractParties_DuplicateTaxIdsKeptSeparate(t *testing.T) {
	text := strings.Join([]string{
		"CUIT: 30-71234567-1",
		"CUIT: 30-71234567-1",
	}, "\n")

	parties := ExtractParties(text)
	if len(parties) != 2 {
		t.Fatalf("expected 2 parties, got %d", len(parties))
	}
}

func TestExtractParties_WindowLimitsFieldSearch(t *testing.T) {
	lines := []string{"Razón Social: Muy Lejos SA"}
	for i := 0; i < 12; i++ {
		lines = append(lines, "1111111111111111") // digit filler, never a name
	}
	lines = append(lines, "CUIT: 20-12345678-6")

	parties := ExtractParties(strings.Join(lines, "\n"))
	if len(parties) != 1 {
		t.Fatalf("expected 1 party, got %d", len(parties))
	}
	if parties[0].LegalName != "" {
		t.Errorf("label outside the window must not be used, got %q", parties[0].LegalName)
	}
}
