package pii

import (
	"strings"
	"testing"
)

func TestDetect_Email(t *testing.T) {
	matches := Detect("Contact me at jane.doe@example.com tomorrow.")
	if !hasType(matches, TypeEmail) {
		t.Errorf("expected an email match, got %+v", matches)
	}
}

func TestDetect_ValidSSNScoresHigherThanInvalid(t *testing.T) {
	valid := Detect("SSN: 456-45-6789")
	invalid := Detect("SSN: 000-45-6789")

	vm := firstOfType(valid, TypeSSN)
	im := firstOfType(invalid, TypeSSN)
	if vm == nil || im == nil {
		t.Fatalf("expected both texts to match the SSN pattern, got valid=%v invalid=%v", valid, invalid)
	}
	if vm.Confidence <= im.Confidence {
		t.Errorf("expected valid SSN to score higher than invalid, got %v <= %v", vm.Confidence, im.Confidence)
	}
}

func TestDetect_CreditCardLuhnValidation(t *testing.T) {
	// 4111111111111111 is a well-known Luhn-valid test number.
	matches := Detect("Card number 4111 1111 1111 1111 on file.")
	m := firstOfType(matches, TypeCreditCard)
	if m == nil {
		t.Fatal("expected a credit card match")
	}
	if m.Confidence < 0.8 {
		t.Errorf("expected Luhn-valid card to score >= base confidence, got %v", m.Confidence)
	}
}

func TestDetect_IBANValidation(t *testing.T) {
	matches := Detect("IBAN: GB82WEST12345698765432")
	m := firstOfType(matches, TypeIBAN)
	if m == nil {
		t.Fatal("expected an IBAN match")
	}
}

func TestDetect_OverlapResolutionKeepsEarliestHighestConfidence(t *testing.T) {
	matches := Detect("Email jane@example.com and visit https://example.com/jane")
	for i := 1; i < len(matches); i++ {
		if matches[i].Start < matches[i-1].End {
			t.Errorf("expected non-overlapping matches, got %+v overlapping %+v", matches[i-1], matches[i])
		}
	}
}

func TestRedact_ReplaceMode(t *testing.T) {
	out, log := Redact("Email me at jane@example.com", RedactionOptions{Mode: Replace})
	if strings.Contains(out, "jane@example.com") {
		t.Errorf("expected email to be redacted, got %q", out)
	}
	if len(log) == 0 {
		t.Error("expected a redaction log entry")
	}
}

func TestRedact_PartialMaskKeepsEnds(t *testing.T) {
	out, _ := Redact("SSN 456-45-6789 on file", RedactionOptions{Mode: PartialMask, PartialShow: 2})
	if !strings.Contains(out, "45") {
		t.Errorf("expected partial mask to retain edge characters, got %q", out)
	}
	if strings.Contains(out, "456-45-6789") {
		t.Errorf("expected middle to be masked, got %q", out)
	}
}

func TestRedact_HashModeIsStableLength(t *testing.T) {
	out, _ := Redact("Email jane@example.com", RedactionOptions{Mode: Hash})
	idx := strings.Index(out, "Email ")
	hashPart := strings.TrimSpace(out[idx+len("Email "):])
	if len(hashPart) != 8 {
		t.Errorf("expected an 8-character hash, got %q (%d chars)", hashPart, len(hashPart))
	}
}

func TestRedact_RemoveModeDeletesSpan(t *testing.T) {
	out, _ := Redact("start jane@example.com end", RedactionOptions{Mode: Remove})
	if strings.Contains(out, "@") {
		t.Errorf("expected the email span removed entirely, got %q", out)
	}
}

func TestRedact_NoMatchesReturnsOriginal(t *testing.T) {
	out, log := Redact("nothing sensitive here", RedactionOptions{})
	if out != "nothing sensitive here" || len(log) != 0 {
		t.Errorf("expected text unchanged with empty log, got %q %v", out, log)
	}
}

func hasType(matches []Match, typ Type) bool {
	return firstOfType(matches, typ) != nil
}

func firstOfType(matches []Match, typ Type) *Match {
	for i := range matches {
		if matches[i].Type == typ {
			return &matches[i]
		}
	}
	return nil
}
