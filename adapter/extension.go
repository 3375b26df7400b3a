package adapter

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/weftend/weftend/receipts"
)

type extensionAdapter struct{}

func newExtensionAdapter() Adapter { return &extensionAdapter{} }

func (a *extensionAdapter) ID() string   { return "extension_adapter_v1" }
func (a *extensionAdapter) Class() Class { return ClassExtension }

func (a *extensionAdapter) Fitness(path string, cap *receipts.ArtifactCapture) bool {
	if cap.Kind == "dir" {
		for _, e := range cap.Entries {
			if e.Path == "manifest.json" {
				return true
			}
		}
		return false
	}
	ext := lowerASCII(filepath.Ext(path))
	return ext == ".crx"
}

func (a *extensionAdapter) Validate(path string, cap *receipts.ArtifactCapture, enabledPlugins []string) receipts.AdapterResult {
	if cap.Kind == "dir" {
		manifestPath := filepath.Join(cap.BasePath, "manifest.json")
		data, err := os.ReadFile(manifestPath)
		if err != nil {
			return fail(a.ID(), "EXTENSION_MANIFEST_MISSING", "manifest.json not found at root", nil)
		}
		if res := a.validateManifest(data); res.FailCode != "" {
			return res
		}

		var names []string
		for _, e := range cap.Entries {
			names = append(names, e.Path)
		}
		if dup, isDup := findDuplicate(names); isDup {
			return fail(a.ID(), "EXTENSION_FORMAT_MISMATCH", "duplicate entry: "+dup, nil)
		}
		if collided, collides := hasCaseCollision(names); collides {
			return fail(a.ID(), "EXTENSION_FORMAT_MISMATCH", "case-colliding entry: "+collided, nil)
		}
		return ok(a.ID(), map[string]any{"format": "dir"}, nil, nil, []string{"EXTENSION_MANIFEST_VALIDATED"})
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(a.ID(), "EXTENSION_MANIFEST_MISSING", err.Error(), nil)
	}
	if len(data) < 16 || !bytes.HasPrefix(data, []byte("Cr24")) {
		return fail(a.ID(), "EXTENSION_MANIFEST_MISSING", "missing CRX header magic", nil)
	}
	headerLen := binary.LittleEndian.Uint32(data[8:12])
	payloadStart := 12 + int(headerLen)
	if payloadStart > len(data) {
		return fail(a.ID(), "EXTENSION_FORMAT_MISMATCH", "declared header length overflows file", nil)
	}
	payload := data[payloadStart:]
	if !bytes.HasPrefix(payload, zipMagic) {
		return fail(a.ID(), "EXTENSION_FORMAT_MISMATCH", "CRX payload is not a ZIP", nil)
	}

	names, failResult := scanZIPNames(a.ID(), payload)
	if failResult != nil {
		failResult.FailCode = "EXTENSION_FORMAT_MISMATCH"
		return *failResult
	}
	if !containsPrefix(names, "manifest.json") {
		return fail(a.ID(), "EXTENSION_MANIFEST_MISSING", "CRX payload missing manifest.json at root", nil)
	}

	return ok(a.ID(), map[string]any{"format": "crx"}, nil, nil, []string{"EXTENSION_CRX_HEADER_VALIDATED"})
}

func (a *extensionAdapter) validateManifest(data []byte) receipts.AdapterResult {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return fail(a.ID(), "EXTENSION_MANIFEST_INVALID", "manifest.json is not valid JSON", nil)
	}
	for _, field := range []string{"manifest_version", "name", "version"} {
		if _, present := m[field]; !present {
			return fail(a.ID(), "EXTENSION_MANIFEST_INVALID", "missing required field: "+field, nil)
		}
	}
	return receipts.AdapterResult{}
}
