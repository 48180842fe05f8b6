package workspace

import (
	"os"
	"path/filepath"
	"strings"

	"lsp-pool/src/internal/registry"
)

// Directories never worth scanning for language markers.
var skipDirectories = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"build":        true,
	"dist":         true,
	"target":       true,
	"__pycache__":  true,
	".git":         true,
	".idea":        true,
	".vscode":      true,
}

// Project structure files that identify a language outright.
var markerFiles = map[string]string{
	"go.mod":         "go",
	"go.sum":         "go",
	"Cargo.toml":     "rust",
	"Cargo.lock":     "rust",
	"tsconfig.json":  "typescript",
	"package.json":   "javascript",
	"setup.py":       "python",
	"pyproject.toml": "python",
	"requirements.txt": "python",
	"pom.xml":        "java",
	"build.gradle":   "java",
}

const maxDetectDepth = 3

// DetectLanguage inspects a workspace root and reports the language a
// connection for it should serve. Marker files win over extension counts;
// an empty string means no confident answer.
func DetectLanguage(root string) string {
	if root == "" {
		return ""
	}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return ""
	}

	scores := make(map[string]int)
	walkForMarkers(root, root, scores)

	best := ""
	bestScore := 0
	for language, score := range scores {
		if score > bestScore || (score == bestScore && language < best) {
			best = language
			bestScore = score
		}
	}
	return best
}

func walkForMarkers(root, dir string, scores map[string]int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			if skipDirectories[name] || strings.HasPrefix(name, ".") {
				continue
			}
			sub := filepath.Join(dir, name)
			if depthFrom(root, sub) < maxDetectDepth {
				walkForMarkers(root, sub, scores)
			}
			continue
		}

		if language, ok := markerFiles[name]; ok {
			scores[language] += 25
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		if info, ok := registry.GetLanguageByExtension(ext); ok {
			scores[info.Name] += 1
		}
	}
}

func depthFrom(root, dir string) int {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return maxDetectDepth
	}
	return strings.Count(rel, string(os.PathSeparator)) + 1
}
