package adapter

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/weftend/weftend/receipts"
)

type documentAdapter struct{}

func newDocumentAdapter() Adapter { return &documentAdapter{} }

func (a *documentAdapter) ID() string   { return "document_adapter_v1" }
func (a *documentAdapter) Class() Class { return ClassDocument }

func (a *documentAdapter) Fitness(path string, cap *receipts.ArtifactCapture) bool {
	if cap.Kind != "file" {
		return false
	}
	ext := lowerASCII(filepath.Ext(path))
	switch ext {
	case ".pdf", ".rtf", ".chm", ".docm", ".xlsm", ".pptm", ".docx", ".xlsx", ".pptx":
		return true
	}
	return false
}

func (a *documentAdapter) Validate(path string, cap *receipts.ArtifactCapture, enabledPlugins []string) receipts.AdapterResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return fail(a.ID(), "DOC_FORMAT_MISMATCH", err.Error(), nil)
	}
	ext := lowerASCII(filepath.Ext(path))

	switch ext {
	case ".pdf":
		return a.validatePDF(data)
	case ".rtf":
		return a.validateRTF(data)
	case ".chm":
		return a.validateCHM(data)
	default:
		return a.validateOOXML(ext, data)
	}
}

func (a *documentAdapter) validatePDF(data []byte) receipts.AdapterResult {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return fail(a.ID(), "DOC_FORMAT_MISMATCH", "missing %PDF- magic", nil)
	}
	if !bytes.Contains(data, []byte(" obj")) || !bytes.Contains(data, []byte("endobj")) {
		return fail(a.ID(), "DOC_FORMAT_MISMATCH", "no obj/endobj pair found", nil)
	}
	if !bytes.Contains(data, []byte("startxref")) {
		return fail(a.ID(), "DOC_FORMAT_MISMATCH", "missing startxref", nil)
	}
	tail := data
	if len(data) > 1024 {
		tail = data[len(data)-1024:]
	}
	if !bytes.Contains(tail, []byte("%%EOF")) {
		return fail(a.ID(), "DOC_FORMAT_MISMATCH", "missing %%EOF trailer in final kilobyte", nil)
	}
	return ok(a.ID(), map[string]any{"format": "pdf"}, nil, nil, []string{"DOC_PDF_STRUCTURE_VALIDATED"})
}

func (a *documentAdapter) validateRTF(data []byte) receipts.AdapterResult {
	if !bytes.HasPrefix(data, []byte(`{\rtf1`)) {
		return fail(a.ID(), "DOC_FORMAT_MISMATCH", "missing {\\rtf1 prolog", nil)
	}
	rest := data[len(`{\rtf1`):]
	if !bytes.ContainsRune(rest, '\\') {
		return fail(a.ID(), "DOC_FORMAT_MISMATCH", "no additional control word found", nil)
	}
	if !balancedBraces(data) {
		return fail(a.ID(), "DOC_FORMAT_MISMATCH", "unbalanced closing brace", nil)
	}
	return ok(a.ID(), map[string]any{"format": "rtf"}, nil, nil, []string{"DOC_RTF_PROLOG_VALIDATED"})
}

func balancedBraces(data []byte) bool {
	depth := 0
	for _, c := range data {
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

func (a *documentAdapter) validateCHM(data []byte) receipts.AdapterResult {
	if len(data) < 4 || !bytes.HasPrefix(data, []byte("ITSF")) {
		return fail(a.ID(), "DOC_FORMAT_MISMATCH", "missing ITSF signature", nil)
	}
	const minHeaderSize = 96
	if len(data) < minHeaderSize {
		return fail(a.ID(), "DOC_FORMAT_MISMATCH", "file below minimum CHM header size", nil)
	}
	return ok(a.ID(), map[string]any{"format": "chm"}, nil, nil, []string{"DOC_CHM_HEADER_VALIDATED"})
}

var primaryDocumentPart = map[string]string{
	".docm": "word/document.xml", ".docx": "word/document.xml",
	".xlsm": "xl/workbook.xml", ".xlsx": "xl/workbook.xml",
	".pptm": "ppt/presentation.xml", ".pptx": "ppt/presentation.xml",
}

func (a *documentAdapter) validateOOXML(ext string, data []byte) receipts.AdapterResult {
	if !bytes.HasPrefix(data, zipMagic) {
		return fail(a.ID(), "DOC_FORMAT_MISMATCH", "missing ZIP signature", nil)
	}
	names, failResult := scanZIPNames(a.ID(), data)
	if failResult != nil {
		failResult.FailCode = "DOC_FORMAT_MISMATCH"
		return *failResult
	}
	rootSet := make(map[string]bool, len(names))
	for _, n := range names {
		if !bytes.ContainsRune([]byte(n), '/') {
			rootSet[n] = true
		}
	}
	if !rootSet["[Content_Types].xml"] {
		return fail(a.ID(), "DOC_FORMAT_MISMATCH", "missing [Content_Types].xml", nil)
	}
	if !containsPrefix(names, "_rels/.rels") {
		return fail(a.ID(), "DOC_FORMAT_MISMATCH", "missing _rels/.rels", nil)
	}
	primary, known := primaryDocumentPart[ext]
	if known && !containsPrefix(names, primary) {
		return fail(a.ID(), "DOC_FORMAT_MISMATCH", "missing primary document part: "+primary, nil)
	}
	if dup, isDup := findDuplicate(names); isDup {
		return fail(a.ID(), "DOC_FORMAT_MISMATCH", "duplicate entry: "+dup, nil)
	}
	if collided, collides := hasCaseCollision(names); collides {
		return fail(a.ID(), "DOC_FORMAT_MISMATCH", "case-colliding entry: "+collided, nil)
	}
	return ok(a.ID(), map[string]any{"format": "ooxml"}, nil, nil, []string{"DOC_OOXML_PRIMARY_PART_VALIDATED"})
}
