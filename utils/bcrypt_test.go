package utils

import "testing"

func TestComparePassword(t *testing.T) {
	hashed, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := ComparePassword(string(hashed), "s3cret"); err != nil {
		t.Fatalf("correct password rejected: %v", err)
	}
	if err := ComparePassword(string(hashed), "wrong"); err == nil {
		t.Fatal("wrong password accepted")
	}
	// a corrupted stored hash must fail the check, not pass it
	if err := ComparePassword("not-a-bcrypt-hash", "s3cret"); err == nil {
		t.Fatal("malformed stored hash accepted")
	}
}
