package adapter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/weftend/weftend/receipts"
)

type imageAdapter struct{}

func newImageAdapter() Adapter { return &imageAdapter{} }

func (a *imageAdapter) ID() string   { return "image_adapter_v1" }
func (a *imageAdapter) Class() Class { return ClassImage }

func (a *imageAdapter) Fitness(path string, cap *receipts.ArtifactCapture) bool {
	if cap.Kind != "file" {
		return false
	}
	ext := lowerASCII(filepath.Ext(path))
	switch ext {
	case ".iso", ".vhd", ".vhdx", ".qcow2", ".vmdk":
		return true
	}
	return false
}

func (a *imageAdapter) Validate(path string, cap *receipts.ArtifactCapture, enabledPlugins []string) receipts.AdapterResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return fail(a.ID(), "IMAGE_FORMAT_MISMATCH", err.Error(), nil)
	}
	ext := lowerASCII(filepath.Ext(path))

	switch ext {
	case ".iso":
		return a.validateISO(data)
	case ".vhd":
		return a.validateVHD(data)
	case ".vhdx":
		return a.validateVHDX(data)
	case ".qcow2":
		return a.validateQCOW2(data)
	case ".vmdk":
		return a.validateVMDK(data)
	}
	return fail(a.ID(), "IMAGE_FORMAT_MISMATCH", "unrecognized image extension", nil)
}

const isoSectorSize = 2048

func (a *imageAdapter) validateISO(data []byte) receipts.AdapterResult {
	pvdOff := 16 * isoSectorSize
	termOff := 17 * isoSectorSize
	if len(data) < termOff+isoSectorSize {
		return fail(a.ID(), "IMAGE_FORMAT_MISMATCH", "file too small for volume descriptor sectors", nil)
	}
	pvd := data[pvdOff : pvdOff+7]
	if pvd[0] != 0x01 || string(pvd[1:6]) != "CD001" || pvd[6] != 0x01 {
		return fail(a.ID(), "IMAGE_FORMAT_MISMATCH", "missing primary volume descriptor at sector 16", nil)
	}
	term := data[termOff : termOff+7]
	if term[0] != 0xFF || string(term[1:6]) != "CD001" || term[6] != 0x01 {
		return fail(a.ID(), "IMAGE_FORMAT_MISMATCH", "missing terminator descriptor at sector 17", nil)
	}
	return ok(a.ID(), map[string]any{"format": "iso9660"}, nil, nil, []string{"IMAGE_ISO9660_DESCRIPTORS_VALIDATED"})
}

func (a *imageAdapter) validateVHD(data []byte) receipts.AdapterResult {
	const minSize = 512 * 3
	if len(data) < minSize {
		return fail(a.ID(), "IMAGE_FORMAT_MISMATCH", "file below structural minimum", nil)
	}
	footer := data[len(data)-512:]
	if !bytes.HasPrefix(footer, []byte("conectix")) {
		return fail(a.ID(), "IMAGE_FORMAT_MISMATCH", "missing conectix footer", nil)
	}
	return ok(a.ID(), map[string]any{"format": "vhd"}, nil, nil, []string{"IMAGE_VHD_FOOTER_VALIDATED"})
}

func (a *imageAdapter) validateVHDX(data []byte) receipts.AdapterResult {
	const minSize = 1 << 20
	if len(data) < minSize || !bytes.HasPrefix(data, []byte("vhdxfile")) {
		return fail(a.ID(), "IMAGE_FORMAT_MISMATCH", "missing vhdxfile signature or below structural minimum", nil)
	}
	return ok(a.ID(), map[string]any{"format": "vhdx"}, nil, nil, []string{"IMAGE_VHDX_SIGNATURE_VALIDATED"})
}

func (a *imageAdapter) validateQCOW2(data []byte) receipts.AdapterResult {
	const minSize = 104
	if len(data) < minSize || !bytes.HasPrefix(data, []byte{'Q', 'F', 'I', 0xFB}) {
		return fail(a.ID(), "IMAGE_FORMAT_MISMATCH", "missing QFI\\xFB magic or below structural minimum", nil)
	}
	version := uint32(data[4])<<24 | uint32(data[5])<<16 | uint32(data[6])<<8 | uint32(data[7])
	if version != 2 && version != 3 {
		return fail(a.ID(), "IMAGE_FORMAT_MISMATCH", "unsupported qcow2 version", nil)
	}
	return ok(a.ID(), map[string]any{"format": "qcow2"}, nil, nil, []string{"IMAGE_QCOW2_MAGIC_AND_VERSION_VALIDATED"})
}

func (a *imageAdapter) validateVMDK(data []byte) receipts.AdapterResult {
	if len(data) >= 4 && bytes.Equal(data[:4], []byte{'K', 'D', 'M', 'V'}) {
		return ok(a.ID(), map[string]any{"format": "vmdk-sparse"}, nil, nil, []string{"IMAGE_VMDK_SPARSE_MAGIC_VALIDATED"})
	}
	text := string(data)
	hasCreateType := strings.Contains(text, "createType")
	hasDescriptorHeader := strings.Contains(text, "# Disk DescriptorFile")
	hasExtent := strings.Contains(text, "RW") && strings.Contains(text, "SPARSE")
	if hasCreateType && hasDescriptorHeader && hasExtent {
		return ok(a.ID(), map[string]any{"format": "vmdk-descriptor"}, nil, nil, []string{"IMAGE_VMDK_DESCRIPTOR_VALIDATED"})
	}
	return fail(a.ID(), "IMAGE_FORMAT_MISMATCH", "no valid sparse header or complete descriptor evidence", nil)
}
