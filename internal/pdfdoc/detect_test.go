package pdfdoc

import (
	"errors"
	"testing"
)

func TestIsPasswordProtected(t *testing.T) {
	plain := buildPDF(t, "Lease agreement")
	encrypted := encryptPDF(t, plain, "s3cret")

	cases := []struct {
		name string
		data []byte
		want bool
	}{
		{name: "plain", data: plain, want: false},
		{name: "encrypted", data: encrypted, want: true},
		{name: "empty", data: nil, want: false},
		{name: "garbage fails open", data: []byte("definitely not a pdf"), want: false},
		{name: "truncated fails open", data: plain[:len(plain)/3], want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsPasswordProtected(tc.data); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestEveryEncryptionHandlerIsDetectedAndDecrypted(t *testing.T) {
	plain := buildPDF(t, "Lease agreement", "Schedule A")
	for name, conf := range encryptionVariants("s3cret") {
		t.Run(name, func(t *testing.T) {
			encrypted := encryptWith(t, plain, conf)
			if !IsPasswordProtected(encrypted) {
				t.Fatal("expected the document to be detected as protected")
			}
			if _, err := Decrypt(encrypted, "wrong"); !errors.Is(err, ErrInvalidPassword) {
				t.Fatalf("expected ErrInvalidPassword, got %v", err)
			}
			decrypted, err := Decrypt(encrypted, "s3cret")
			if err != nil {
				t.Fatalf("decrypt: %v", err)
			}
			if count, err := PageCount(decrypted); err != nil || count != 2 {
				t.Fatalf("expected 2 pages, got %d (%v)", count, err)
			}
		})
	}
}

func TestDecrypt(t *testing.T) {
	plain := buildPDF(t, "Page one", "Page two")
	encrypted := encryptPDF(t, plain, "s3cret")

	if _, err := Decrypt(encrypted, "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
	if _, err := Decrypt(encrypted, ""); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword for empty password, got %v", err)
	}

	decrypted, err := Decrypt(encrypted, "s3cret")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if IsPasswordProtected(decrypted) {
		t.Fatal("decrypted copy still reports protection")
	}
	count, err := PageCount(decrypted)
	if err != nil {
		t.Fatalf("page count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 pages, got %d", count)
	}
}

func TestDecryptPassesThroughPlainDocuments(t *testing.T) {
	plain := buildPDF(t, "Page one")
	out, err := Decrypt(plain, "anything")
	if err != nil {
		t.Fatalf("decrypt plain: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected document bytes")
	}
}
