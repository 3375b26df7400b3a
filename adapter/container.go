package adapter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/weftend/weftend/receipts"
)

type containerAdapter struct{}

func newContainerAdapter() Adapter { return &containerAdapter{} }

func (a *containerAdapter) ID() string   { return "container_adapter_v1" }
func (a *containerAdapter) Class() Class { return ClassContainer }

func (a *containerAdapter) Fitness(path string, cap *receipts.ArtifactCapture) bool {
	if cap.Kind == "dir" {
		hasLayout, hasIndex := false, false
		for _, e := range cap.Entries {
			if e.Path == "oci-layout" {
				hasLayout = true
			}
			if e.Path == "index.json" {
				hasIndex = true
			}
		}
		return hasLayout && hasIndex
	}
	ext := lowerASCII(filepath.Ext(path))
	return ext == ".tar" || ext == ".yml" || ext == ".yaml" || ext == ".json"
}

type ociIndex struct {
	Manifests []struct {
		Digest string `json:"digest"`
	} `json:"manifests"`
}

func (a *containerAdapter) Validate(path string, cap *receipts.ArtifactCapture, enabledPlugins []string) receipts.AdapterResult {
	if cap.Kind == "dir" {
		return a.validateOCILayoutDir(cap)
	}
	ext := lowerASCII(filepath.Ext(path))
	data, err := os.ReadFile(path)
	if err != nil {
		return fail(a.ID(), "CONTAINER_FORMAT_MISMATCH", err.Error(), nil)
	}
	switch ext {
	case ".yml", ".yaml":
		return a.validateComposeYAML(data)
	case ".json":
		return a.validateSBOM(data)
	case ".tar":
		return a.validateDockerSaveTar(data)
	}
	return fail(a.ID(), "CONTAINER_FORMAT_MISMATCH", "unrecognized container format", nil)
}

func (a *containerAdapter) validateOCILayoutDir(cap *receipts.ArtifactCapture) receipts.AdapterResult {
	byPath := make(map[string]receipts.CaptureEntry, len(cap.Entries))
	var names []string
	for _, e := range cap.Entries {
		byPath[e.Path] = e
		names = append(names, e.Path)
	}
	if dup, isDup := findDuplicate(names); isDup {
		return fail(a.ID(), "CONTAINER_LAYOUT_INVALID", "duplicate entry: "+dup, nil)
	}
	if collided, collides := hasCaseCollision(names); collides {
		return fail(a.ID(), "CONTAINER_LAYOUT_INVALID", "case-colliding entry: "+collided, nil)
	}

	indexEntry, ok2 := byPath["index.json"]
	if !ok2 {
		return fail(a.ID(), "CONTAINER_LAYOUT_INVALID", "missing index.json", nil)
	}
	indexData, err := os.ReadFile(filepath.Join(cap.BasePath, indexEntry.Path))
	if err != nil {
		return fail(a.ID(), "CONTAINER_LAYOUT_INVALID", err.Error(), nil)
	}
	var idx ociIndex
	if err := json.Unmarshal(indexData, &idx); err != nil {
		return fail(a.ID(), "CONTAINER_LAYOUT_INVALID", "index.json is not valid JSON", nil)
	}

	for _, m := range idx.Manifests {
		if m.Digest == "" {
			continue
		}
		parts := strings.SplitN(m.Digest, ":", 2)
		if len(parts) != 2 {
			return fail(a.ID(), "CONTAINER_LAYOUT_INVALID", "malformed digest reference: "+m.Digest, nil)
		}
		blobPath := "blobs/" + parts[0] + "/" + parts[1]
		if _, exists := byPath[blobPath]; !exists {
			return fail(a.ID(), "CONTAINER_LAYOUT_INVALID", "referenced blob missing: "+blobPath, nil)
		}
	}

	return ok(a.ID(), map[string]any{"format": "oci-layout"}, nil, nil, []string{"CONTAINER_OCI_LAYOUT_BLOBS_VALIDATED"})
}

type dockerSaveManifest struct {
	Config string   `json:"Config"`
	Layers []string `json:"Layers"`
}

func (a *containerAdapter) validateDockerSaveTar(data []byte) receipts.AdapterResult {
	entries, err := scanTarEntries(data)
	if err != nil {
		return fail(a.ID(), "CONTAINER_FORMAT_MISMATCH", err.Error(), nil)
	}
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	if dup, isDup := findDuplicate(names); isDup {
		return fail(a.ID(), "CONTAINER_FORMAT_MISMATCH", "duplicate manifest entry: "+dup, nil)
	}
	if collided, collides := hasCaseCollision(names); collides {
		return fail(a.ID(), "CONTAINER_FORMAT_MISMATCH", "case-colliding entry: "+collided, nil)
	}

	manifestData, hasManifest := entries["manifest.json"]
	if !hasManifest {
		return fail(a.ID(), "CONTAINER_FORMAT_MISMATCH", "missing manifest.json", nil)
	}
	if _, hasRepos := entries["repositories"]; !hasRepos {
		return fail(a.ID(), "CONTAINER_FORMAT_MISMATCH", "missing repositories file", nil)
	}

	var manifests []dockerSaveManifest
	if err := json.Unmarshal(manifestData, &manifests); err != nil {
		return fail(a.ID(), "CONTAINER_FORMAT_MISMATCH", "manifest.json is not valid JSON", nil)
	}
	if len(manifests) == 0 {
		return fail(a.ID(), "CONTAINER_FORMAT_MISMATCH", "empty manifest.json", nil)
	}
	for _, m := range manifests {
		if len(m.Layers) == 0 {
			return fail(a.ID(), "CONTAINER_FORMAT_MISMATCH", "manifest entry has empty Layers", nil)
		}
		if _, exists := entries[m.Config]; !exists {
			return fail(a.ID(), "CONTAINER_FORMAT_MISMATCH", "Config not resolvable: "+m.Config, nil)
		}
		for _, layer := range m.Layers {
			if _, exists := entries[layer]; !exists {
				return fail(a.ID(), "CONTAINER_FORMAT_MISMATCH", "layer not resolvable: "+layer, nil)
			}
		}
	}
	return ok(a.ID(), map[string]any{"format": "docker-save"}, nil, nil, []string{"CONTAINER_DOCKER_SAVE_REFERENCES_VALIDATED"})
}

func (a *containerAdapter) validateComposeYAML(data []byte) receipts.AdapterResult {
	lines := strings.Split(string(data), "\n")
	sawServices := false
	sawHint := false
	for i, line := range lines {
		trimmed := strings.TrimRight(line, " \t\r")
		if strings.HasPrefix(trimmed, "services:") {
			sawServices = true
			for _, follow := range lines[i+1:] {
				t := strings.TrimRight(follow, " \t\r")
				if t == "" {
					continue
				}
				indent := len(follow) - len(strings.TrimLeft(follow, " "))
				if indent == 0 {
					break
				}
				if strings.Contains(t, "image:") || strings.Contains(t, "build:") {
					sawHint = true
				}
			}
		}
	}
	if !sawServices || !sawHint {
		return fail(a.ID(), "CONTAINER_FORMAT_MISMATCH", "missing services: map with image/build hint", nil)
	}
	return ok(a.ID(), map[string]any{"format": "compose"}, nil, nil, []string{"CONTAINER_COMPOSE_SERVICES_VALIDATED"})
}

func (a *containerAdapter) validateSBOM(data []byte) receipts.AdapterResult {
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return fail(a.ID(), "CONTAINER_SBOM_INVALID", "not valid JSON", nil)
	}

	if components, present := generic["components"]; present {
		if list, isList := components.([]any); isList && hasMeaningfulEntry(list) {
			return ok(a.ID(), map[string]any{"format": "cyclonedx"}, nil, nil, []string{"CONTAINER_SBOM_CYCLONEDX_VALIDATED"})
		}
	}
	if packages, present := generic["packages"]; present {
		if list, isList := packages.([]any); isList && hasMeaningfulEntry(list) {
			return ok(a.ID(), map[string]any{"format": "spdx"}, nil, nil, []string{"CONTAINER_SBOM_SPDX_VALIDATED"})
		}
	}
	return fail(a.ID(), "CONTAINER_SBOM_INVALID", "no meaningful package/component entry", nil)
}

func hasMeaningfulEntry(list []any) bool {
	for _, item := range list {
		m, isMap := item.(map[string]any)
		if !isMap {
			continue
		}
		if ref, ok := m["bom-ref"].(string); ok && ref != "" {
			return true
		}
		if name, ok := m["name"].(string); ok && name != "" {
			return true
		}
	}
	return false
}

// scanTarEntries reads a tar byte stream into a flat name->contents map
// (sufficient for docker-save's shallow, non-nested layout).
func scanTarEntries(data []byte) (map[string][]byte, error) {
	entries := make(map[string][]byte)
	off := 0
	for off+512 <= len(data) {
		block := data[off : off+512]
		if isZeroBlock(block) {
			break
		}
		name := cstr(block[0:100])
		size := parseOctal(block[124:136])
		start := off + 512
		end := start + int(size)
		if end > len(data) {
			return nil, errTruncatedTarEntry(name)
		}
		entries[name] = data[start:end]
		dataBlocks := (size + 511) / 512
		off = start + int(dataBlocks)*512
	}
	return entries, nil
}

func errTruncatedTarEntry(name string) error {
	return &tarEntryError{name: name}
}

type tarEntryError struct{ name string }

func (e *tarEntryError) Error() string { return "tar entry truncated: " + e.name }
