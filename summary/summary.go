// Package summary builds a deterministic ContentSummary from a capture,
// classifier result, and the observations collected along the way
// (external references, strings indicators, boundedness markers, and
// any adapter signals). Every field is a pure function of its inputs.
package summary

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/weftend/weftend/canon"
	"github.com/weftend/weftend/classify"
	"github.com/weftend/weftend/receipts"
)

var extensionClass = map[string]string{
	".html": "html", ".htm": "html",
	".js": "js", ".mjs": "js", ".cjs": "js",
	".css": "css",
	".json": "json",
	".wasm": "wasm",
	".png": "media", ".jpg": "media", ".jpeg": "media", ".gif": "media",
	".svg": "media", ".mp4": "media", ".webm": "media", ".mp3": "media",
	".exe": "binary", ".dll": "binary", ".so": "binary", ".bin": "binary",
}

const maxTopExtensions = 10
const maxTopDomains = 10
const maxReasonCodes = 64

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)
var ipPattern = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
var powershellPattern = regexp.MustCompile(`(?i)powershell(\.exe)?\s`)
var cmdExecPattern = regexp.MustCompile(`(?i)\b(cmd\.exe|/bin/sh|exec\s*\()`)

// Observations carries the non-structural signals gathered while
// building a summary: boundedness markers recorded by the host runner,
// adapter signals from a successful adapter validation, and the
// selected policy's match trace.
type Observations struct {
	BoundednessMarkers []string
	AdapterSignals     map[string]any
	SelectedPolicy     string
	PolicyReasonCodes  []string
	TargetKind         string
}

// Build constructs a ContentSummary. inputRef/virtualID are used only
// when the capture itself is virtual (e.g. a container adapter result
// with no raw byte-for-byte root), in which case hashFamily.sha256 is
// the digest of {inputRef, id} rather than of the capture root.
func Build(cap *receipts.ArtifactCapture, cls classify.Result, obs Observations, inputRef, virtualID string) (receipts.ContentSummary, error) {
	counts := receipts.FileCountsByKind{}
	extFreq := make(map[string]int)
	hasNative, hasScripts, hasHTML := false, false, false

	var domains []string
	var indicators receipts.StringsIndicators

	for _, e := range cap.Entries {
		ext := strings.ToLower(filepath.Ext(e.Path))
		extFreq[ext]++
		switch extensionClass[ext] {
		case "html":
			counts.HTML++
			hasHTML = true
		case "js":
			counts.JS++
			hasScripts = true
		case "css":
			counts.CSS++
		case "json":
			counts.JSON++
		case "wasm":
			counts.WASM++
		case "media":
			counts.Media++
		case "binary":
			counts.Binary++
			hasNative = true
		default:
			counts.Other++
		}

		if ext == ".html" || ext == ".htm" || ext == ".js" || ext == ".css" || ext == ".txt" || ext == ".json" {
			if body, ok := readBoundedText(cap, e); ok {
				domains = append(domains, extractDomains(body)...)
				indicators.URLLikeCount += len(urlPattern.FindAll(body, -1))
				indicators.IPLikeCount += len(ipPattern.FindAll(body, -1))
				indicators.PowershellLikeCount += len(powershellPattern.FindAll(body, -1))
				indicators.CmdExecLikeCount += len(cmdExecPattern.FindAll(body, -1))
			}
		}
	}

	topExt := canon.SortUnique(keysOf(extFreq))
	topExt = canon.TruncateSorted(topExt, maxTopExtensions)

	domains = canon.SortUnique(domains)
	domains = canon.TruncateSorted(domains, maxTopDomains)

	entryHints := canon.SortUnique(nonEmpty(cls.EntryHint))
	boundedness := canon.SortUnique(obs.BoundednessMarkers)
	policyReasons := canon.SortUnique(obs.PolicyReasonCodes)
	policyReasons = canon.TruncateSorted(policyReasons, maxReasonCodes)

	var hashFamily receipts.HashFamily
	if cap.RootDigest != "" && inputRef == "" {
		hashFamily.SHA256 = strings.TrimPrefix(cap.RootDigest, canon.Algorithm+":")
	} else {
		d, err := canon.DigestValue(map[string]any{"inputRef": inputRef, "id": virtualID})
		if err != nil {
			return receipts.ContentSummary{}, err
		}
		hashFamily.SHA256 = strings.TrimPrefix(d, canon.Algorithm+":")
	}

	return receipts.ContentSummary{
		TargetKind:         obs.TargetKind,
		ArtifactKind:       cls.ArtifactKind,
		FileCountsByKind:   counts,
		TotalFiles:         len(cap.Entries),
		TotalBytesBounded:  totalBytes(cap),
		TopExtensions:      topExt,
		HasNativeBinaries:  hasNative,
		HasScripts:         hasScripts,
		HasHTML:            hasHTML,
		ExternalRefs:       receipts.ExternalRefs{Count: len(domains), TopDomains: domains},
		EntryHints:         entryHints,
		BoundednessMarkers: boundedness,
		ArchiveDepthMax:    archiveDepth(obs.AdapterSignals),
		NestedArchiveCount: nestedArchiveCount(obs.AdapterSignals),
		ManifestCount:      manifestCount(cap),
		StringsIndicators:  indicators,
		AdapterSignals:     obs.AdapterSignals,
		PolicyMatch:        receipts.PolicyMatch{SelectedPolicy: obs.SelectedPolicy, ReasonCodes: policyReasons},
		HashFamily:         hashFamily,
	}, nil
}

func keysOf(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

func totalBytes(cap *receipts.ArtifactCapture) int64 {
	var total int64
	for _, e := range cap.Entries {
		total += e.Bytes
	}
	return total
}

func manifestCount(cap *receipts.ArtifactCapture) int {
	count := 0
	for _, e := range cap.Entries {
		base := strings.ToLower(filepath.Base(e.Path))
		if base == "manifest.json" || base == "package.json" || base == "release_manifest.json" {
			count++
		}
	}
	return count
}

func archiveDepth(signals map[string]any) int {
	if v, ok := signals["archiveDepthMax"].(int); ok {
		return v
	}
	return 0
}

func nestedArchiveCount(signals map[string]any) int {
	if v, ok := signals["nestedArchiveCount"].(int); ok {
		return v
	}
	return 0
}

func readBoundedText(cap *receipts.ArtifactCapture, e receipts.CaptureEntry) ([]byte, bool) {
	if e.Bytes > cap.Limits.MaxFileBytes {
		return nil, false
	}
	full := filepath.Join(cap.BasePath, e.Path)
	if cap.Kind == "file" {
		full = cap.BasePath
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, false
	}
	return data, true
}

func extractDomains(body []byte) []string {
	var out []string
	for _, m := range urlPattern.FindAll(body, -1) {
		u := string(m)
		u = strings.TrimPrefix(u, "https://")
		u = strings.TrimPrefix(u, "http://")
		if idx := strings.IndexAny(u, "/?#"); idx >= 0 {
			u = u[:idx]
		}
		if idx := strings.IndexByte(u, '@'); idx >= 0 {
			u = u[idx+1:]
		}
		u = strings.ToLower(u)
		if u != "" {
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out
}
