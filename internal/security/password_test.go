package security

import "testing"

func TestHashPassword(t *testing.T) {
	const plain = "correct horse battery staple"

	hash, err := HashPassword(plain)

	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	// the stored value must never equal the plaintext
	if hash == plain {
		t.Fatal("hash equals the plaintext password")
	}

	if err := CheckPassword(hash, plain); err != nil {
		t.Fatalf("CheckPassword() with correct password error = %v", err)
	}

	if err := CheckPassword(hash, "wrong password"); err == nil {
		t.Fatal("CheckPassword() accepted a wrong password")
	}
}

func TestHashPasswordSalted(t *testing.T) {
	// two hashes of the same input must differ (random salt)
	h1, err := HashPassword("pw1pw1pw1")

	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	h2, err := HashPassword("pw1pw1pw1")

	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if h1 == h2 {
		t.Fatal("expected salted hashes to differ")
	}
}
