package bundle

import (
	"pyctx/internal/extractor"
	"pyctx/internal/resolver"
)

// Options configure an Assembler. Nothing is read from the environment.
type Options struct {
	// Root is the project root used for symbol resolution. When empty, the
	// target file's directory is used.
	Root      string
	Excludes  []string
	CacheSize int
	// Deep extends the call walk into nested blocks of the target body.
	Deep bool
	// UsageFrequency builds the project import graph to count importers of
	// the target file.
	UsageFrequency bool
	// DocstringPlaceholder is inserted when the file has no docstrings.
	// Empty disables the placeholder.
	DocstringPlaceholder string
	// OnResolve observes resolver stage outcomes.
	OnResolve func(stage, outcome string)
}

// Target names the function under analysis.
type Target struct {
	FilePath     string
	FunctionName string
	// Root overrides Options.Root for this request.
	Root string
}

type SemanticInfo struct {
	Docstrings  []string          `json:"docstrings"`
	Comments    []string          `json:"comments"`
	Variables   []string          `json:"variables"`
	Functions   []string          `json:"functions"`
	Classes     []string          `json:"classes"`
	Definitions map[string]string `json:"definitions"`
}

// Bundle is the assembled context of one function. It is not modified after
// Assemble returns.
type Bundle struct {
	FunctionName          string              `json:"function_name"`
	FilePath              string              `json:"file_path"`
	FunctionCode          string              `json:"function_code"`
	Dependencies          []string            `json:"dependencies"`
	Metadata              *extractor.Metadata `json:"metadata"`
	SemanticInfo          SemanticInfo        `json:"semantic_info"`
	CrossFileRelationship map[string][]string `json:"cross_file_relationship"`
	UnusedImports         []string            `json:"unused_imports"`
	Unresolved            []string            `json:"unresolved"`
	Warnings              []string            `json:"warnings"`

	ResolutionStats []resolver.StageResult `json:"-"`
}
