package registry

import (
	"fmt"
	"time"
)

// LanguageInfo contains comprehensive information about a supported language
type LanguageInfo struct {
	Name           string   // Language name (go, python, javascript, typescript, java, rust, csharp)
	Extensions     []string // File extensions for this language
	DefaultCommand string   // Default LSP server command
	DefaultArgs    []string // Default arguments for the LSP server

	// Configuration fields
	InitializationOptions map[string]interface{} // LSP initialization options
	RequestTimeout        time.Duration          // Request timeout duration
	InitializeTimeout     time.Duration          // Initialize timeout duration
}

// Global language registry containing all supported languages
var languageRegistry = map[string]LanguageInfo{
	"go": {
		Name:           "go",
		Extensions:     []string{".go"},
		DefaultCommand: "gopls",
		DefaultArgs:    []string{"serve"},
		InitializationOptions: map[string]interface{}{
			"usePlaceholders":    false,
			"completeUnimported": true,
		},
		RequestTimeout:    15 * time.Second,
		InitializeTimeout: 15 * time.Second,
	},
	"python": {
		Name:           "python",
		Extensions:     []string{".py", ".pyi"},
		DefaultCommand: "jedi-language-server",
		DefaultArgs:    []string{},
		InitializationOptions: map[string]interface{}{
			"usePlaceholders":    false,
			"completeUnimported": true,
		},
		RequestTimeout:    30 * time.Second,
		InitializeTimeout: 30 * time.Second,
	},
	"javascript": {
		Name:              "javascript",
		Extensions:        []string{".js", ".jsx", ".mjs"},
		DefaultCommand:    "typescript-language-server",
		DefaultArgs:       []string{"--stdio"},
		RequestTimeout:    15 * time.Second,
		InitializeTimeout: 30 * time.Second,
	},
	"typescript": {
		Name:              "typescript",
		Extensions:        []string{".ts", ".tsx", ".d.ts"},
		DefaultCommand:    "typescript-language-server",
		DefaultArgs:       []string{"--stdio"},
		RequestTimeout:    15 * time.Second,
		InitializeTimeout: 30 * time.Second,
	},
	"java": {
		Name:              "java",
		Extensions:        []string{".java"},
		DefaultCommand:    "jdtls",
		DefaultArgs:       []string{},
		RequestTimeout:    90 * time.Second,
		InitializeTimeout: 90 * time.Second,
	},
	"rust": {
		Name:           "rust",
		Extensions:     []string{".rs"},
		DefaultCommand: "rust-analyzer",
		DefaultArgs:    []string{},
		InitializationOptions: map[string]interface{}{
			"checkOnSave": map[string]interface{}{
				"enable":  true,
				"command": "check",
			},
			"procMacro": map[string]interface{}{
				"enable": true,
			},
		},
		RequestTimeout:    15 * time.Second,
		InitializeTimeout: 15 * time.Second,
	},
	"csharp": {
		Name:              "csharp",
		Extensions:        []string{".cs"},
		DefaultCommand:    "omnisharp",
		DefaultArgs:       []string{"-lsp"},
		RequestTimeout:    30 * time.Second,
		InitializeTimeout: 45 * time.Second,
	},
}

// Extension to language mapping for efficient lookups
var extensionToLanguage = map[string]string{
	".go":   "go",
	".py":   "python",
	".pyi":  "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".d.ts": "typescript",
	".java": "java",
	".rs":   "rust",
	".cs":   "csharp",
}

// GetSupportedLanguages returns all supported language information
func GetSupportedLanguages() []LanguageInfo {
	languages := make([]LanguageInfo, 0, len(languageRegistry))
	for _, lang := range languageRegistry {
		languages = append(languages, lang)
	}
	return languages
}

// GetLanguageByName returns language information by name
func GetLanguageByName(name string) (*LanguageInfo, bool) {
	lang, exists := languageRegistry[name]
	if !exists {
		return nil, false
	}
	return &lang, true
}

// GetLanguageByExtension returns language information by file extension
func GetLanguageByExtension(ext string) (*LanguageInfo, bool) {
	langName, exists := extensionToLanguage[ext]
	if !exists {
		return nil, false
	}

	lang, exists := languageRegistry[langName]
	if !exists {
		return nil, false
	}
	return &lang, true
}

// GetLanguageNames returns list of supported language names
func GetLanguageNames() []string {
	names := make([]string, 0, len(languageRegistry))
	for name := range languageRegistry {
		names = append(names, name)
	}
	return names
}

// IsLanguageSupported checks if a language is supported
func IsLanguageSupported(name string) bool {
	_, exists := languageRegistry[name]
	return exists
}

// ValidateLanguage validates if the language is supported and returns error if not
func ValidateLanguage(name string) error {
	if !IsLanguageSupported(name) {
		return fmt.Errorf("unsupported language: %s (supported: %v)", name, GetLanguageNames())
	}
	return nil
}

// GetInitOptions returns the initialization options for this language
func (l *LanguageInfo) GetInitOptions() map[string]interface{} {
	if l.InitializationOptions == nil {
		return map[string]interface{}{}
	}
	// Return a copy to prevent modification
	result := make(map[string]interface{})
	for k, v := range l.InitializationOptions {
		result[k] = v
	}
	return result
}

// GetTimeouts returns the request and initialize timeout durations for this language
func (l *LanguageInfo) GetTimeouts() (requestTimeout time.Duration, initializeTimeout time.Duration) {
	return l.RequestTimeout, l.InitializeTimeout
}
