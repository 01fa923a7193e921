package extraction

import (
	"reflect"
	"testing"
)

func TestValidTaxId(t *testing.T) {
	cases := []struct {
		in    string
		valid bool
	}{
		{"20123456786", true},
		{"20-12345678-6", true},
		{"20.12345678.6", true},
		{"30123456781", true},
		{"30-71234567-1", true},
		// remainder 1 maps the theoretical check digit 10 to 9
		{"20000000019", true},
		// remainder 0 maps the theoretical check digit 11 to 0
		{"20000000400", true},

		{"30123456785", false}, // wrong check digit
		{"2012345678", false},  // 10 digits
		{"201234567860", false},
		{"2012345678A", false},
		{"", false},
	}
	for _, c := range cases {
		if got := ValidTaxId(c.in); got != c.valid {
			t.Errorf("ValidTaxId(%q) = %v, want %v", c.in, got, c.valid)
		}
	}
}

func TestNormalizeTaxId(t *testing.T) {
	if got := NormalizeTaxId(" 20-12.345 678-6 "); got != "20123456786" {
		t.Fatalf("NormalizeTaxId = %q", got)
	}
}

func TestFindTaxIds(t *testing.T) {
	text := "FACTURA A\n" +
		"CUIT: 30-71234567-1\n" +
		"Cliente CUIT 20-12345678-6\n" +
		"ref 30123456781\n" + // bare 11-digit form
		"CUIT: 30-12345678-5\n" + // checksum-invalid, must be skipped
		"CUIT: 30-71234567-1\n" // duplicate

	got := FindTaxIds(text)
	want := []string{"30712345671", "20123456786", "30123456781"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FindTaxIds = %v, want %v", got, want)
	}
}

func TestFindTaxIdInLine(t *testing.T) {
	if got := findTaxIdInLine("CUIT: 30-12345678-5 luego CUIT: 20-12345678-6"); got != "20123456786" {
		t.Fatalf("expected the first checksum-valid token, got %q", got)
	}
	if got := findTaxIdInLine("sin identificador"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	// A longer digit run must not yield a tax-id sliced from its tail.
	if got := findTaxIdInLine("legajo 9930-12345678-1"); got != "" {
		t.Fatalf("expected no tax id inside a longer digit run, got %q", got)
	}
}
