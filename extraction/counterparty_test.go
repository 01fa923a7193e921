package extraction

import "testing"

func TestChooseCounterparty(t *testing.T) {
	parties := []Party{
		{TaxId: "20123456786", LegalName: "Mi Empresa SRL"},
		{TaxId: "30712345671", LegalName: "ACME DISTRIBUCIONES SRL"},
	}

	got := ChooseCounterparty(parties, "20-12345678-6")
	if got == nil || got.TaxId != "30712345671" {
		t.Fatalf("expected the non-owner party, got %+v", got)
	}
}

func TestChooseCounterparty_NoOwnerTaxIdFallsBackToFirst(t *testing.T) {
	parties := []Party{
		{TaxId: "30712345671"},
		{TaxId: "20123456786"},
	}
	got := ChooseCounterparty(parties, "")
	if got == nil || got.TaxId != "30712345671" {
		t.Fatalf("expected first party, got %+v", got)
	}
}

func TestChooseCounterparty_OnlyOwnerPresent(t *testing.T) {
	parties := []Party{{TaxId: "20123456786"}}
	if got := ChooseCounterparty(parties, "20123456786"); got != nil {
		t.Fatalf("expected nil when only the owner appears, got %+v", got)
	}
}

func TestChooseCounterparty_Empty(t *testing.T) {
	if got := ChooseCounterparty(nil, "20123456786"); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}
