package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// BuildArtifactDetector inspects language build manifests to find
// custom output directories that default exclusions would miss.
type BuildArtifactDetector struct {
	projectRoot string
}

// NewBuildArtifactDetector returns a detector scoped to projectRoot.
func NewBuildArtifactDetector(projectRoot string) *BuildArtifactDetector {
	return &BuildArtifactDetector{projectRoot: projectRoot}
}

// DetectOutputDirectories returns glob patterns ("**/dir/**") for
// custom build-output directories discovered in manifest files.
func (d *BuildArtifactDetector) DetectOutputDirectories() []string {
	var patterns []string
	patterns = append(patterns, d.detectJavaScriptOutputs()...)
	patterns = append(patterns, d.detectRustOutputs()...)
	patterns = append(patterns, d.detectPythonOutputs()...)
	return patterns
}

func (d *BuildArtifactDetector) detectJavaScriptOutputs() []string {
	var patterns []string
	data, err := os.ReadFile(filepath.Join(d.projectRoot, "package.json"))
	if err != nil {
		return nil
	}
	var pkg map[string]interface{}
	if json.Unmarshal(data, &pkg) != nil {
		return nil
	}
	if cfg, ok := pkg["config"].(map[string]interface{}); ok {
		if out, ok := cfg["outDir"].(string); ok && out != "" {
			patterns = append(patterns, "**/"+out+"/**")
		}
	}
	return patterns
}

func (d *BuildArtifactDetector) detectRustOutputs() []string {
	var patterns []string
	data, err := os.ReadFile(filepath.Join(d.projectRoot, "Cargo.toml"))
	if err != nil {
		return nil
	}
	var cargo map[string]interface{}
	if toml.Unmarshal(data, &cargo) != nil {
		return nil
	}
	if profile, ok := cargo["profile"].(map[string]interface{}); ok {
		if release, ok := profile["release"].(map[string]interface{}); ok {
			if targetDir, ok := release["target-dir"].(string); ok && targetDir != "" {
				patterns = append(patterns, "**/"+targetDir+"/**")
			}
		}
	}
	return patterns
}

func (d *BuildArtifactDetector) detectPythonOutputs() []string {
	var patterns []string
	data, err := os.ReadFile(filepath.Join(d.projectRoot, "pyproject.toml"))
	if err != nil {
		return nil
	}
	var pyproject map[string]interface{}
	if toml.Unmarshal(data, &pyproject) != nil {
		return nil
	}
	if tool, ok := pyproject["tool"].(map[string]interface{}); ok {
		if poetry, ok := tool["poetry"].(map[string]interface{}); ok {
			if build, ok := poetry["build"].(map[string]interface{}); ok {
				if targetDir, ok := build["target-dir"].(string); ok && targetDir != "" {
					patterns = append(patterns, "**/"+targetDir+"/**")
				}
			}
		}
	}
	return patterns
}

// DeduplicatePatterns removes duplicate glob patterns while preserving
// first-seen order.
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
