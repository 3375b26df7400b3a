package adapter

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/weftend/weftend/receipts"
)

type scmAdapter struct{}

func newSCMAdapter() Adapter { return &scmAdapter{} }

func (a *scmAdapter) ID() string   { return "scm_adapter_v1" }
func (a *scmAdapter) Class() Class { return ClassSCM }

func (a *scmAdapter) Fitness(path string, cap *receipts.ArtifactCapture) bool {
	if cap.Kind != "dir" {
		return false
	}
	base := filepath.Base(cap.BasePath)
	if base == ".git" {
		return true
	}
	for _, e := range cap.Entries {
		if e.Path == ".git" || strings.HasPrefix(e.Path, ".git/") {
			return true
		}
	}
	return false
}

func (a *scmAdapter) Validate(path string, cap *receipts.ArtifactCapture, enabledPlugins []string) receipts.AdapterResult {
	gitDir := cap.BasePath
	if filepath.Base(gitDir) != ".git" {
		gitDir = filepath.Join(gitDir, ".git")
	}

	info, err := os.Stat(gitDir)
	if err != nil {
		return fail(a.ID(), "SCM_REF_UNRESOLVED", "no .git directory found", nil)
	}
	if !info.IsDir() {
		pointer, err := os.ReadFile(gitDir)
		if err != nil {
			return fail(a.ID(), "SCM_REF_UNRESOLVED", "gitdir pointer unreadable", nil)
		}
		text := strings.TrimSpace(string(pointer))
		if !strings.HasPrefix(text, "gitdir:") {
			return fail(a.ID(), "SCM_REF_UNRESOLVED", "malformed gitdir pointer", nil)
		}
		target := strings.TrimSpace(strings.TrimPrefix(text, "gitdir:"))
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(gitDir), target)
		}
		gitDir = target
	}

	headPath := filepath.Join(gitDir, "HEAD")
	headData, err := os.ReadFile(headPath)
	if err != nil {
		return fail(a.ID(), "SCM_REF_UNRESOLVED", "missing HEAD", nil)
	}
	head := strings.TrimSpace(string(headData))

	if !strings.HasPrefix(head, "ref: refs/heads/") {
		return fail(a.ID(), "SCM_REF_UNRESOLVED", "HEAD does not target refs/heads/*", nil)
	}
	refName := strings.TrimPrefix(head, "ref: ")
	refPath := filepath.Join(gitDir, filepath.FromSlash(refName))

	resolvedDirect := fileExists(refPath)
	resolvedPacked := false
	if !resolvedDirect {
		resolvedPacked = packedRefContains(gitDir, refName)
	}
	if !resolvedDirect && !resolvedPacked {
		return fail(a.ID(), "SCM_REF_UNRESOLVED", "HEAD ref does not resolve to an object", nil)
	}

	refsDir := filepath.Join(gitDir, "refs", "heads")
	entries, err := os.ReadDir(refsDir)
	if err == nil {
		var resolvedCount, totalCount int
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			totalCount++
			if fileExists(filepath.Join(refsDir, e.Name())) {
				resolvedCount++
			}
		}
		if totalCount > 0 && resolvedCount > 0 && resolvedCount < totalCount {
			return fail(a.ID(), "SCM_REF_UNRESOLVED", "partial ref resolution across refs/heads", nil)
		}
	}

	return ok(a.ID(), map[string]any{"format": "git"}, nil, nil, []string{"SCM_HEAD_REF_RESOLVED"})
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func packedRefContains(gitDir, refName string) bool {
	data, err := os.ReadFile(filepath.Join(gitDir, "packed-refs"))
	if err != nil {
		return false
	}
	return strings.Contains(string(data), refName)
}
