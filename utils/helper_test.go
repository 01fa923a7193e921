package utils

import "testing"

func TestValidatePhoneNumber(t *testing.T) {
	if err := ValidatePhoneNumber("+541133334444", CountryCode); err != nil {
		t.Fatalf("expected valid AR number, got error: %v", err)
	}
	if err := ValidatePhoneNumber("12", CountryCode); err == nil {
		t.Fatal("expected error for a junk phone number")
	}
}

func TestFormatPhoneNumberE164(t *testing.T) {
	got, err := FormatPhoneNumberE164("+54 11 3333 4444", CountryCode)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "+541133334444" {
		t.Fatalf("expected +541133334444, got %q", got)
	}

	if _, err := FormatPhoneNumberE164("12", CountryCode); err == nil {
		t.Fatal("expected error for a junk phone number")
	}
}

func TestDereferencePtr(t *testing.T) {
	n := 7
	if got := DereferencePtr(&n); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if got := DereferencePtr[int](nil); got != 0 {
		t.Fatalf("expected zero value, got %d", got)
	}
	if got := DereferencePtr((*int)(nil), 3); got != 3 {
		t.Fatalf("expected fallback 3, got %d", got)
	}
}

func TestExtractObjectKeyFromURL(t *testing.T) {
	t.Setenv("GCS_BUCKET", "receipts-bucket")

	got := ExtractObjectKeyFromURL("https://storage.googleapis.com/receipts-bucket/owner-1/receipts/abc.pdf")
	if got != "owner-1/receipts/abc.pdf" {
		t.Fatalf("expected object key, got %q", got)
	}

	if got := ExtractObjectKeyFromURL("https://storage.googleapis.com/other-bucket/x.pdf"); got != "" {
		t.Fatalf("expected empty key for foreign bucket URL, got %q", got)
	}
}
