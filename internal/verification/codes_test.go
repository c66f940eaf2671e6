package verification

import "testing"

func TestGenerateCodes(t *testing.T) {
	codes := GenerateCodes(150)
	if len(codes) != 150 {
		t.Fatalf("expected 150 codes, got %d", len(codes))
	}

	seen := make(map[string]bool)
	for _, c := range codes {
		if len(c.Code) != 6 {
			t.Errorf("code %q is not six digits", c.Code)
		}
		if c.Code[0] == '0' {
			t.Errorf("code %q has a leading zero", c.Code)
		}
		if seen[c.Code] {
			t.Errorf("duplicate code %q", c.Code)
		}
		seen[c.Code] = true

		if c.UsageCount != 0 || !c.IsValid {
			t.Errorf("code %q not fresh: %+v", c.Code, c)
		}
	}
}
