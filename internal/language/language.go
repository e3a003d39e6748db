// Package language maps filesystem entries to language tags. Detection
// is a finite lookup over extensions and well-known filenames with an
// explicit Unknown result, optionally extended from a languages.yml
// definition file.
package language

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tag identifies a language. Unknown means no mapping exists for the
// file; callers must treat it as a valid answer, not an error.
type Tag string

const Unknown Tag = ""

// Info describes one language entry in a languages.yml file. Only the
// fields needed for detection are parsed.
type Info struct {
	Type       string   `yaml:"type"`
	Extensions []string `yaml:"extensions"`
	Filenames  []string `yaml:"filenames"`
}

// Map resolves paths to language tags. Immutable after construction.
type Map struct {
	byExtension map[string]Tag
	byFilename  map[string]Tag
}

// Default returns a Map seeded with the built-in extension and
// filename tables.
func Default() *Map {
	m := &Map{
		byExtension: make(map[string]Tag, len(defaultExtensions)),
		byFilename:  make(map[string]Tag, len(defaultFilenames)),
	}
	for ext, tag := range defaultExtensions {
		m.byExtension[ext] = tag
	}
	for name, tag := range defaultFilenames {
		m.byFilename[name] = tag
	}
	return m
}

// LoadYAML returns a Map built from the defaults plus the definitions
// in a languages.yml file. File entries win over the built-ins.
func LoadYAML(path string) (*Map, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading language file %s: %w", path, err)
	}
	var langs map[string]Info
	if err := yaml.Unmarshal(raw, &langs); err != nil {
		return nil, fmt.Errorf("parsing language file %s: %w", path, err)
	}

	m := Default()
	for name, info := range langs {
		tag := Tag(name)
		for _, ext := range info.Extensions {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			m.byExtension[ext] = tag
		}
		for _, fname := range info.Filenames {
			m.byFilename[fname] = tag
		}
	}
	return m, nil
}

// Detect returns the language tag for a path. Exact filename matches
// take precedence over extension matches, the way linguist resolves
// entries like Makefile or Dockerfile.
func (m *Map) Detect(path string) Tag {
	if m == nil {
		return Unknown
	}
	base := filepath.Base(path)
	if tag, ok := m.byFilename[base]; ok {
		return tag
	}
	if ext := strings.ToLower(filepath.Ext(base)); ext != "" {
		if tag, ok := m.byExtension[ext]; ok {
			return tag
		}
	}
	return Unknown
}

var defaultExtensions = map[string]Tag{
	".c":     "C",
	".cc":    "C++",
	".cpp":   "C++",
	".cs":    "C#",
	".css":   "CSS",
	".dart":  "Dart",
	".ex":    "Elixir",
	".exs":   "Elixir",
	".go":    "Go",
	".h":     "C",
	".hpp":   "C++",
	".hs":    "Haskell",
	".html":  "HTML",
	".java":  "Java",
	".js":    "JavaScript",
	".json":  "JSON",
	".jsx":   "JavaScript",
	".kt":    "Kotlin",
	".lua":   "Lua",
	".md":    "Markdown",
	".php":   "PHP",
	".pl":    "Perl",
	".py":    "Python",
	".r":     "R",
	".rb":    "Ruby",
	".rs":    "Rust",
	".scala": "Scala",
	".sh":    "Shell",
	".sql":   "SQL",
	".swift": "Swift",
	".tf":    "HCL",
	".toml":  "TOML",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".txt":   "Text",
	".vue":   "Vue",
	".xml":   "XML",
	".yaml":  "YAML",
	".yml":   "YAML",
	".zig":   "Zig",
}

var defaultFilenames = map[string]Tag{
	"CMakeLists.txt": "CMake",
	"Dockerfile":     "Dockerfile",
	"Gemfile":        "Ruby",
	"Makefile":       "Makefile",
	"Rakefile":       "Ruby",
	"go.mod":         "Go Module",
	"go.sum":         "Go Module",
}
