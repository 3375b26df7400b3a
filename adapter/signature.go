package adapter

import (
	"bytes"
	"encoding/pem"
	"os"
	"path/filepath"

	"github.com/weftend/weftend/receipts"
)

type signatureAdapter struct{}

func newSignatureAdapter() Adapter { return &signatureAdapter{} }

func (a *signatureAdapter) ID() string   { return "signature_adapter_v1" }
func (a *signatureAdapter) Class() Class { return ClassSignature }

func (a *signatureAdapter) Fitness(path string, cap *receipts.ArtifactCapture) bool {
	if cap.Kind != "file" {
		return false
	}
	ext := lowerASCII(filepath.Ext(path))
	switch ext {
	case ".sig", ".p7b", ".p7s", ".der", ".cer":
		return true
	}
	return false
}

var pemPKCS7Header = []byte("-----BEGIN PKCS7-----")
var pemCMSHeader = []byte("-----BEGIN CMS-----")
var pemCertHeader = []byte("-----BEGIN CERTIFICATE-----")

func (a *signatureAdapter) Validate(path string, cap *receipts.ArtifactCapture, enabledPlugins []string) receipts.AdapterResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return fail(a.ID(), "SIGNATURE_FORMAT_MISMATCH", err.Error(), nil)
	}
	ext := lowerASCII(filepath.Ext(path))

	if bytes.HasPrefix(data, pemPKCS7Header) || bytes.HasPrefix(data, pemCMSHeader) {
		return ok(a.ID(), map[string]any{"format": "pem-pkcs7-cms"}, nil, nil, []string{"SIGNATURE_PEM_ENVELOPE_VALIDATED"})
	}

	if bytes.HasPrefix(data, pemCertHeader) {
		if ext == ".sig" || ext == ".p7b" {
			return fail(a.ID(), "SIGNATURE_FORMAT_MISMATCH", "certificate-only PEM envelope with signature extension", nil)
		}
		return a.validateBareDER(stripPEM(data), ext)
	}

	return a.validateBareDER(data, ext)
}

func stripPEM(data []byte) []byte {
	if b, _ := pem.Decode(data); b != nil {
		return b.Bytes
	}
	return data
}

// validateBareDER accepts a DER blob only when it carries either explicit
// signature-envelope evidence (an outer SEQUENCE immediately followed by
// a PKCS7 signedData OID) or, for bare certificates, an X.509 Name OID
// pattern near the start of the SEQUENCE body.
func (a *signatureAdapter) validateBareDER(data []byte, ext string) receipts.AdapterResult {
	if len(data) < 4 || data[0] != 0x30 {
		return fail(a.ID(), "SIGNATURE_FORMAT_MISMATCH", "not a DER SEQUENCE", nil)
	}

	pkcs7SignedDataOID := []byte{0x06, 0x09, 0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x07, 0x02}
	if bytes.Contains(data[:min2(len(data), 64)], pkcs7SignedDataOID) {
		return ok(a.ID(), map[string]any{"format": "der-pkcs7"}, nil, nil, []string{"SIGNATURE_DER_SIGNEDDATA_OID_FOUND"})
	}

	x509NamePrefix := []byte{0x06, 0x03, 0x55, 0x04}
	lookAhead := data[1:min2(len(data), 32)]
	if bytes.Contains(lookAhead, x509NamePrefix) {
		return ok(a.ID(), map[string]any{"format": "der-certificate"}, nil, nil, []string{"SIGNATURE_DER_X509_NAME_OID_FOUND"})
	}

	return fail(a.ID(), "SIGNATURE_FORMAT_MISMATCH", "no signature-envelope or X.509 Name OID evidence", nil)
}

func min2(a, b int) int {
	if a < b {
		return a
	}
	return b
}
