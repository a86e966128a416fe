package pdfdoc

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// buildPDF writes a minimal PDF with one Helvetica text line per page.
func buildPDF(t *testing.T, pageTexts ...string) []byte {
	t.Helper()
	if len(pageTexts) == 0 {
		pageTexts = []string{"Hello"}
	}

	var objects []string
	pageCount := len(pageTexts)
	// 1: catalog, 2: pages, 3: font, then page/content pairs
	kids := ""
	for i := 0; i < pageCount; i++ {
		kids += fmt.Sprintf("%d 0 R ", 4+i*2)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pageCount),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, text := range pageTexts {
		stream := fmt.Sprintf("BT /F1 18 Tf 72 720 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+i*2),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, offset := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offset)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func encryptPDF(t *testing.T, data []byte, password string) []byte {
	t.Helper()
	return encryptWith(t, data, model.NewAESConfiguration(password, password, 256))
}

// encryptionVariants covers the RC4 and AES handlers, including an owner
// password that differs from the user password.
func encryptionVariants(userPW string) map[string]*model.Configuration {
	return map[string]*model.Configuration{
		"rc4-40":                model.NewRC4Configuration(userPW, userPW, 40),
		"rc4-128 owner differs": model.NewRC4Configuration(userPW, "0wner-only", 128),
		"aes-128 owner differs": model.NewAESConfiguration(userPW, "0wner-only", 128),
		"aes-256":               model.NewAESConfiguration(userPW, userPW, 256),
	}
}

func encryptWith(t *testing.T, data []byte, conf *model.Configuration) []byte {
	t.Helper()
	var out bytes.Buffer
	if err := api.Encrypt(bytes.NewReader(data), &out, conf); err != nil {
		t.Fatalf("encrypt pdf: %v", err)
	}
	return out.Bytes()
}
