package adapter

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/weftend/weftend/receipts"
)

type packageAdapter struct{}

func newPackageAdapter() Adapter { return &packageAdapter{} }

func (a *packageAdapter) ID() string   { return "package_adapter_v1" }
func (a *packageAdapter) Class() Class { return ClassPackage }

var cfbMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
var arMagic = []byte("!<arch>\n")
var rpmMagic = []byte{0xED, 0xAB, 0xEE, 0xDB}
var xarMagic = []byte("xar!")
var zipMagic = []byte{0x50, 0x4b, 0x03, 0x04}

func (a *packageAdapter) Fitness(path string, cap *receipts.ArtifactCapture) bool {
	if cap.Kind != "file" {
		return false
	}
	ext := lowerASCII(filepath.Ext(path))
	switch ext {
	case ".msi", ".deb", ".rpm", ".appimage", ".pkg", ".dmg", ".msix", ".nupkg", ".jar", ".whl":
		return true
	}
	return false
}

func (a *packageAdapter) Validate(path string, cap *receipts.ArtifactCapture, enabledPlugins []string) receipts.AdapterResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return fail(a.ID(), "PACKAGE_FORMAT_MISMATCH", err.Error(), nil)
	}
	ext := lowerASCII(filepath.Ext(path))

	switch ext {
	case ".msi":
		return a.validateMSI(data)
	case ".deb":
		return a.validateDEB(data)
	case ".rpm":
		return a.validateRPM(data)
	case ".appimage":
		return a.validateAppImage(data)
	case ".pkg":
		return a.validateXAR(data)
	case ".dmg":
		return a.validateDMG(data)
	case ".msix", ".nupkg", ".jar", ".whl":
		return a.validateZIPBased(ext, data)
	}
	return fail(a.ID(), "PACKAGE_FORMAT_MISMATCH", "unrecognized package extension", nil)
}

func (a *packageAdapter) validateMSI(data []byte) receipts.AdapterResult {
	if len(data) < 512 || !bytes.HasPrefix(data, cfbMagic) {
		return fail(a.ID(), "PACKAGE_FORMAT_MISMATCH", "missing CFB signature", nil)
	}
	return ok(a.ID(), map[string]any{"format": "msi"}, nil, nil, []string{"PACKAGE_MSI_CFB_MAGIC_VALIDATED"})
}

func (a *packageAdapter) validateDEB(data []byte) receipts.AdapterResult {
	if len(data) < 68 || !bytes.HasPrefix(data, arMagic) {
		return fail(a.ID(), "PACKAGE_FORMAT_MISMATCH", "missing ar archive signature", nil)
	}
	off := len(arMagic)
	found := make(map[string]bool)
	var names []string
	for off+60 <= len(data) {
		hdr := data[off : off+60]
		name := bytes.TrimRight(hdr[0:16], " ")
		sizeField := bytes.TrimRight(hdr[48:58], " ")
		size := parseOctalOrDecimal(sizeField)
		n := string(bytes.TrimSuffix(name, []byte("/")))
		names = append(names, n)
		found[n] = true
		off += 60 + int(size)
		if size%2 == 1 {
			off++
		}
	}
	if !found["debian-binary"] {
		return fail(a.ID(), "PACKAGE_FORMAT_MISMATCH", "missing debian-binary member", nil)
	}
	if _, dup := findDuplicate(names); dup {
		return fail(a.ID(), "PACKAGE_FORMAT_MISMATCH", "duplicate ar member name", nil)
	}
	return ok(a.ID(), map[string]any{"format": "deb"}, nil, nil, []string{"PACKAGE_DEB_AR_MEMBERS_VALIDATED"})
}

func (a *packageAdapter) validateRPM(data []byte) receipts.AdapterResult {
	if len(data) < 96+16 || !bytes.HasPrefix(data, rpmMagic) {
		return fail(a.ID(), "PACKAGE_FORMAT_MISMATCH", "missing rpm lead magic", nil)
	}
	headerMagic := data[96 : 96+3]
	if !bytes.Equal(headerMagic, []byte{0x8e, 0xad, 0xe8}) {
		return fail(a.ID(), "PACKAGE_FORMAT_MISMATCH", "missing rpm header magic", nil)
	}
	return ok(a.ID(), map[string]any{"format": "rpm"}, nil, nil, []string{"PACKAGE_RPM_LEAD_AND_HEADER_VALIDATED"})
}

func (a *packageAdapter) validateAppImage(data []byte) receipts.AdapterResult {
	if len(data) < 4 || !bytes.Equal(data[:4], []byte{0x7f, 'E', 'L', 'F'}) {
		return fail(a.ID(), "PACKAGE_FORMAT_MISMATCH", "missing ELF magic", nil)
	}
	if !bytes.Contains(data[:min(len(data), 1<<20)], []byte("AppImage")) {
		return fail(a.ID(), "PACKAGE_FORMAT_MISMATCH", "missing AppImage runtime marker", nil)
	}
	return ok(a.ID(), map[string]any{"format": "appimage"}, nil, nil, []string{"PACKAGE_APPIMAGE_ELF_AND_MARKER_VALIDATED"})
}

func (a *packageAdapter) validateXAR(data []byte) receipts.AdapterResult {
	if len(data) < 28 || !bytes.HasPrefix(data, xarMagic) {
		return fail(a.ID(), "PACKAGE_FORMAT_MISMATCH", "missing xar magic", nil)
	}
	headerSize := binary.BigEndian.Uint16(data[4:6])
	if int(headerSize) > len(data) {
		return fail(a.ID(), "PACKAGE_FORMAT_MISMATCH", "xar header size overflows file", nil)
	}
	return ok(a.ID(), map[string]any{"format": "pkg"}, nil, nil, []string{"PACKAGE_XAR_HEADER_VALIDATED"})
}

func (a *packageAdapter) validateDMG(data []byte) receipts.AdapterResult {
	if len(data) < 512 {
		return fail(a.ID(), "PACKAGE_FORMAT_MISMATCH", "file below minimum DMG size", nil)
	}
	trailer := data[len(data)-512:]
	if !bytes.HasPrefix(trailer, []byte("koly")) {
		return fail(a.ID(), "PACKAGE_FORMAT_MISMATCH", "missing koly trailer", nil)
	}
	return ok(a.ID(), map[string]any{"format": "dmg"}, nil, nil, []string{"PACKAGE_DMG_KOLY_TRAILER_VALIDATED"})
}

// validateZIPBased handles MSIX, NUPKG, JAR, and WHL: all ZIP-container
// formats distinguished by required root markers.
func (a *packageAdapter) validateZIPBased(ext string, data []byte) receipts.AdapterResult {
	if !bytes.HasPrefix(data, zipMagic) {
		return fail(a.ID(), "PACKAGE_FORMAT_MISMATCH", "missing ZIP signature", nil)
	}
	names, failResult := scanZIPNames(a.ID(), data)
	if failResult != nil {
		return *failResult
	}
	rootSet := make(map[string]bool, len(names))
	for _, n := range names {
		if !bytes.ContainsRune([]byte(n), '/') {
			rootSet[n] = true
		}
	}

	switch ext {
	case ".msix":
		hasContentTypes := rootSet["[Content_Types].xml"]
		hasAppx := rootSet["AppxManifest.xml"]
		hasBundle := rootSet["AppxBundleManifest.xml"]
		if !hasContentTypes || (!hasAppx && !hasBundle) {
			return fail(a.ID(), "PACKAGE_FORMAT_MISMATCH", "missing [Content_Types].xml or AppxManifest.xml", nil)
		}
		if hasAppx && hasBundle {
			return fail(a.ID(), "PACKAGE_FORMAT_MISMATCH", "ambiguous multiple root manifest markers", nil)
		}
	case ".jar":
		if !rootSet["META-INF/MANIFEST.MF"] && !containsPrefix(names, "META-INF/MANIFEST.MF") {
			return fail(a.ID(), "PACKAGE_FORMAT_MISMATCH", "missing META-INF/MANIFEST.MF", nil)
		}
	case ".whl":
		if !hasSuffixAny(names, ".dist-info/METADATA") {
			return fail(a.ID(), "PACKAGE_FORMAT_MISMATCH", "missing *.dist-info/METADATA", nil)
		}
	case ".nupkg":
		if !hasSuffixAny(names, ".nuspec") {
			return fail(a.ID(), "PACKAGE_FORMAT_MISMATCH", "missing .nuspec entry", nil)
		}
	}

	if dup, isDup := findDuplicate(names); isDup {
		return fail(a.ID(), "PACKAGE_FORMAT_MISMATCH", "duplicate entry: "+dup, nil)
	}
	if collided, collides := hasCaseCollision(names); collides {
		return fail(a.ID(), "PACKAGE_FORMAT_MISMATCH", "case-colliding entry: "+collided, nil)
	}

	formatName := ext[1:]
	return ok(a.ID(), map[string]any{"format": formatName, "entryCount": len(names)}, nil, nil,
		[]string{"PACKAGE_ZIP_BASED_ROOT_MARKERS_VALIDATED"})
}

func containsPrefix(names []string, prefix string) bool {
	for _, n := range names {
		if n == prefix {
			return true
		}
	}
	return false
}

func hasSuffixAny(names []string, suffix string) bool {
	for _, n := range names {
		if len(n) >= len(suffix) && n[len(n)-len(suffix):] == suffix {
			return true
		}
	}
	return false
}

// scanZIPNames extracts every central-directory entry name from a raw
// ZIP buffer, reusing the same pointer-arithmetic approach as the
// archive adapter. Returns a fail result ready to return verbatim if
// the directory itself is malformed.
func scanZIPNames(adapterID string, data []byte) ([]string, *receipts.AdapterResult) {
	eocdOff := findEOCD(data)
	if eocdOff < 0 {
		r := fail(adapterID, "PACKAGE_FORMAT_MISMATCH", "end of central directory record not found", nil)
		return nil, &r
	}
	cdEntries := binary.LittleEndian.Uint16(data[eocdOff+10 : eocdOff+12])
	cdOffset := binary.LittleEndian.Uint32(data[eocdOff+16 : eocdOff+20])

	var names []string
	off := int64(cdOffset)
	for i := uint16(0); i < cdEntries; i++ {
		if off+46 > int64(len(data)) {
			r := fail(adapterID, "PACKAGE_FORMAT_MISMATCH", "central directory entry truncated", nil)
			return nil, &r
		}
		sig := binary.LittleEndian.Uint32(data[off : off+4])
		if sig != centralDirSigLE {
			r := fail(adapterID, "PACKAGE_FORMAT_MISMATCH", "central directory entry signature mismatch", nil)
			return nil, &r
		}
		nameLen := binary.LittleEndian.Uint16(data[off+28 : off+30])
		extraLen := binary.LittleEndian.Uint16(data[off+30 : off+32])
		commentLen := binary.LittleEndian.Uint16(data[off+32 : off+34])
		nameStart := off + 46
		nameEnd := nameStart + int64(nameLen)
		if nameEnd > int64(len(data)) {
			r := fail(adapterID, "PACKAGE_FORMAT_MISMATCH", "central directory entry name truncated", nil)
			return nil, &r
		}
		name := string(data[nameStart:nameEnd])
		if hasTraversal(name) {
			r := fail(adapterID, "PACKAGE_FORMAT_MISMATCH", "entry name contains traversal or absolute path: "+name, nil)
			return nil, &r
		}
		names = append(names, name)
		off = nameEnd + int64(extraLen) + int64(commentLen)
	}
	return names, nil
}

func parseOctalOrDecimal(b []byte) int64 {
	var v int64
	for _, c := range b {
		if c < '0' || c > '9' {
			break
		}
		v = v*10 + int64(c-'0')
	}
	return v
}
