package skill

import "testing"

func TestValidateName_Valid(t *testing.T) {
	if err := ValidateName("pdf-reader", nil); err != nil {
		t.Fatalf("expected valid name to pass: %v", err)
	}
}

func TestValidateName_RejectsBadChars(t *testing.T) {
	if err := ValidateName("pdf reader!", nil); err == nil {
		t.Fatal("expected error for name with spaces/punctuation")
	}
}

func TestValidateName_RejectsEmpty(t *testing.T) {
	if err := ValidateName("", nil); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestValidateName_RejectsDefaultReserved(t *testing.T) {
	if err := ValidateName("mcp_manage", nil); err == nil {
		t.Fatal("expected error for built-in reserved name")
	}
}

func TestValidateName_CustomReservedOverridesDefault(t *testing.T) {
	custom := map[string]bool{"forbidden": true}
	if err := ValidateName("mcp_manage", custom); err != nil {
		t.Fatalf("custom reserved set should not block default-reserved names: %v", err)
	}
	if err := ValidateName("forbidden", custom); err == nil {
		t.Fatal("expected error for name in custom reserved set")
	}
}
