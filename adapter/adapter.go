// Package adapter holds the registry of format validators ("adapters")
// that perform deep, fail-closed structural validation of a captured
// artifact once the classifier has placed it in a coarse kind.
//
// Every adapter in this package implements the same strict-format
// contract: fail closed on magic-byte mismatch, declared-length
// overflow, a missing required structural part, case-colliding or
// duplicate entries, an out-of-root required marker, or trailing bytes
// that do not continue the format. Adapters never attempt partial
// recovery; the first disqualifying condition is fatal.
package adapter

import (
	"github.com/weftend/weftend/receipts"
)

// Class is a closed tagged union of adapter families.
type Class string

const (
	ClassArchive   Class = "archive"
	ClassPackage   Class = "package"
	ClassExtension Class = "extension"
	ClassDocument  Class = "document"
	ClassContainer Class = "container"
	ClassImage     Class = "image"
	ClassSignature Class = "signature"
	ClassSCM       Class = "scm"
	ClassIaC       Class = "iac"
	ClassCICD      Class = "cicd"
)

// Selection is how a caller routes an input to an adapter.
type Selection string

const (
	SelectionAuto Selection = "auto"
	SelectionNone Selection = "none"
)

// Adapter validates artifacts belonging to one class.
type Adapter interface {
	ID() string
	Class() Class
	Fitness(path string, cap *receipts.ArtifactCapture) bool
	Validate(path string, cap *receipts.ArtifactCapture, enabledPlugins []string) receipts.AdapterResult
}

// Registry enumerates adapters in a fixed order so that equal-fitness
// routes resolve deterministically: the first fitting adapter wins.
type Registry struct {
	adapters []Adapter
}

// NewRegistry builds the default registry in the fixed evaluation order
// used by "auto" routing.
func NewRegistry() *Registry {
	return &Registry{adapters: []Adapter{
		newArchiveAdapter(),
		newPackageAdapter(),
		newExtensionAdapter(),
		newDocumentAdapter(),
		newContainerAdapter(),
		newImageAdapter(),
		newSignatureAdapter(),
		newSCMAdapter(),
		newIaCAdapter(),
		newCICDAdapter(),
	}}
}

// ByClass returns the adapters belonging to class, in registry order.
func (r *Registry) ByClass(class Class) []Adapter {
	var out []Adapter
	for _, a := range r.adapters {
		if a.Class() == class {
			out = append(out, a)
		}
	}
	return out
}

// All returns every registered adapter in fixed evaluation order.
func (r *Registry) All() []Adapter {
	return append([]Adapter(nil), r.adapters...)
}

// Fail codes shared by the routing layer (package saferun), not tied to
// any single adapter class.
const (
	ReasonPluginUnused              = "ADAPTER_PLUGIN_UNUSED"
	ReasonPluginUnknown             = "ADAPTER_PLUGIN_UNKNOWN"
	ReasonTemporarilyUnavailable    = "ADAPTER_TEMPORARILY_UNAVAILABLE"
	ReasonPolicyInvalid             = "ADAPTER_POLICY_INVALID"
	ReasonClassUnsupportedFormatFmt = "%s_UNSUPPORTED_FORMAT"
)

// ok builds a successful AdapterResult.
func ok(id string, summary map[string]any, signals map[string]any, findings, reasonCodes []string) receipts.AdapterResult {
	return receipts.AdapterResult{
		Ok:             true,
		Adapter:        &receipts.AdapterInfo{AdapterID: id, Mode: "strict"},
		Summary:        summary,
		Findings:       findings,
		AdapterSignals: signals,
		ReasonCodes:    reasonCodes,
	}
}

// okPlugin is ok but tagged with mode "plugin" for adapters that
// required a named external command to complete validation.
func okPlugin(id string, summary map[string]any, signals map[string]any, findings, reasonCodes []string) receipts.AdapterResult {
	r := ok(id, summary, signals, findings, reasonCodes)
	r.Adapter.Mode = "plugin"
	return r
}

// fail builds a failed AdapterResult.
func fail(id, failCode, message string, reasonCodes []string) receipts.AdapterResult {
	return receipts.AdapterResult{
		Ok:          false,
		Adapter:     &receipts.AdapterInfo{AdapterID: id, Mode: "strict"},
		ReasonCodes: reasonCodes,
		FailCode:    failCode,
		FailMessage: message,
	}
}

func pluginEnabled(enabled []string, name string) bool {
	for _, p := range enabled {
		if p == name {
			return true
		}
	}
	return false
}

// KnownPlugins is the closed set of named external commands any
// adapter may require, per spec §4.4 ("tar", "7z").
var KnownPlugins = map[string]bool{
	"tar": true,
	"7z":  true,
}

// UnknownPlugin reports the first enabled plugin name not present in
// KnownPlugins, if any.
func UnknownPlugin(enabled []string) (string, bool) {
	for _, p := range enabled {
		if !KnownPlugins[p] {
			return p, true
		}
	}
	return "", false
}

func hasCaseCollision(names []string) (string, bool) {
	seen := make(map[string]string, len(names))
	for _, n := range names {
		key := lowerASCII(n)
		if prior, ok := seen[key]; ok && prior != n {
			return n, true
		}
		seen[key] = n
	}
	return "", false
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func hasTraversal(name string) bool {
	if len(name) > 0 && name[0] == '/' {
		return true
	}
	for i := 0; i+1 < len(name); i++ {
		if name[i] == '.' && name[i+1] == '.' {
			if (i == 0 || name[i-1] == '/') && (i+2 == len(name) || name[i+2] == '/') {
				return true
			}
		}
	}
	return false
}
