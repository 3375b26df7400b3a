package adapter

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/weftend/weftend/receipts"
)

// cicdAdapter routes CI pipeline definitions (GitHub Actions, Azure
// Pipelines, GitLab CI) by path hint plus a content-shape check.
type cicdAdapter struct{}

func newCICDAdapter() Adapter { return &cicdAdapter{} }

func (a *cicdAdapter) ID() string   { return "cicd_adapter_v1" }
func (a *cicdAdapter) Class() Class { return ClassCICD }

func (a *cicdAdapter) Fitness(path string, cap *receipts.ArtifactCapture) bool {
	return cicdPathHint(path)
}

func cicdPathHint(path string) bool {
	norm := filepath.ToSlash(path)
	if strings.Contains(norm, ".github/workflows/") {
		return true
	}
	base := filepath.Base(norm)
	switch base {
	case "azure-pipelines.yml", "azure-pipelines.yaml", ".gitlab-ci.yml":
		return true
	}
	return false
}

func (a *cicdAdapter) Validate(path string, cap *receipts.ArtifactCapture, enabledPlugins []string) receipts.AdapterResult {
	data, err := os.ReadFile(resolveFile(path, cap))
	if err != nil {
		return fail(a.ID(), "CICD_UNSUPPORTED_FORMAT", err.Error(), nil)
	}
	text := string(data)

	hasJobs := strings.Contains(text, "jobs:")
	hasSteps := strings.Contains(text, "steps:")
	hasOn := strings.Contains(text, "on:")
	hasStages := strings.Contains(text, "stages:")
	hasPool := strings.Contains(text, "pool:")

	isCICDShape := (hasJobs && hasSteps) || hasOn || hasStages || hasPool
	if !isCICDShape {
		return fail(a.ID(), "CICD_UNSUPPORTED_FORMAT", "path hint present without CI content shape", nil)
	}
	if iacShapeOnly(text) {
		return fail(a.ID(), "CICD_UNSUPPORTED_FORMAT", "content shape resembles infrastructure-as-code, not CI", nil)
	}

	return ok(a.ID(), map[string]any{"format": "cicd-workflow"}, nil, nil, []string{"CICD_CONTENT_SHAPE_VALIDATED"})
}

// iacAdapter routes infrastructure-as-code manifests (Terraform,
// CloudFormation, Kubernetes) by path hint plus a content-shape check.
type iacAdapter struct{}

func newIaCAdapter() Adapter { return &iacAdapter{} }

func (a *iacAdapter) ID() string   { return "iac_adapter_v1" }
func (a *iacAdapter) Class() Class { return ClassIaC }

func (a *iacAdapter) Fitness(path string, cap *receipts.ArtifactCapture) bool {
	ext := lowerASCII(filepath.Ext(path))
	if ext == ".tf" {
		return true
	}
	base := strings.ToLower(filepath.Base(path))
	return strings.Contains(base, "cloudformation") || strings.Contains(base, "template")
}

func (a *iacAdapter) Validate(path string, cap *receipts.ArtifactCapture, enabledPlugins []string) receipts.AdapterResult {
	data, err := os.ReadFile(resolveFile(path, cap))
	if err != nil {
		return fail(a.ID(), "IAC_UNSUPPORTED_FORMAT", err.Error(), nil)
	}
	text := string(data)

	hasResource := strings.Contains(text, "resource \"") || strings.Contains(text, "Resources:")
	hasProvider := strings.Contains(text, "provider \"") || strings.Contains(text, "AWSTemplateFormatVersion")
	isIaCShape := hasResource || hasProvider
	if !isIaCShape {
		return fail(a.ID(), "IAC_UNSUPPORTED_FORMAT", "path hint present without IaC content shape", nil)
	}

	if strings.Contains(text, "jobs:") && strings.Contains(text, "steps:") {
		return fail(a.ID(), "IAC_UNSUPPORTED_FORMAT", "content shape resembles a CI workflow, not infrastructure-as-code", nil)
	}

	return ok(a.ID(), map[string]any{"format": "iac-manifest"}, nil, nil, []string{"IAC_CONTENT_SHAPE_VALIDATED"})
}

func iacShapeOnly(text string) bool {
	return (strings.Contains(text, "resource \"") || strings.Contains(text, "Resources:")) &&
		!strings.Contains(text, "steps:")
}

func resolveFile(path string, cap *receipts.ArtifactCapture) string {
	if cap.Kind == "file" {
		return path
	}
	return cap.BasePath
}
