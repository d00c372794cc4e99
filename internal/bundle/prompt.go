package bundle

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const noneAvailable = "none available"

// PromptInput carries the request text that surrounds the bundle.
type PromptInput struct {
	IssueDescription string
	Request          string
	// Category is the description of the selected category, empty when
	// none was selected.
	Category string
}

// RenderPrompt flattens a bundle into line-oriented text. Scalars render as
// "key: value"; mappings as "key:" followed by "    subkey: value" lines.
// Field order is fixed and empty collections render as "none available".
func RenderPrompt(b *Bundle, in PromptInput) string {
	var sb strings.Builder

	scalar(&sb, 0, "function_name", b.FunctionName)
	scalar(&sb, 0, "issue_description", in.IssueDescription)
	scalar(&sb, 0, "request", in.Request)
	list(&sb, 0, "dependencies", b.Dependencies)

	sb.WriteString("function_code:\n")
	sb.WriteString(b.FunctionCode)
	sb.WriteString("\n")

	sb.WriteString("metadata:")
	if b.Metadata == nil {
		sb.WriteString(" " + noneAvailable + "\n")
	} else {
		sb.WriteString("\n")
		scalar(&sb, 1, "size", fmt.Sprintf("%d", b.Metadata.Size))
		scalar(&sb, 1, "path", b.Metadata.Path)
		scalar(&sb, 1, "last_modified", b.Metadata.LastModified.UTC().Format(time.RFC3339))
		if b.Metadata.UsageFrequency == nil {
			scalar(&sb, 1, "usage_frequency", noneAvailable)
		} else {
			scalar(&sb, 1, "usage_frequency", fmt.Sprintf("%d", *b.Metadata.UsageFrequency))
		}
	}

	si := b.SemanticInfo
	sb.WriteString("semantic_info:\n")
	list(&sb, 1, "docstrings", si.Docstrings)
	list(&sb, 1, "comments", si.Comments)
	list(&sb, 1, "variables", si.Variables)
	list(&sb, 1, "functions", si.Functions)
	list(&sb, 1, "classes", si.Classes)
	definitions(&sb, 1, si.Definitions)

	sb.WriteString("cross_file_relationship:")
	if len(b.CrossFileRelationship) == 0 {
		sb.WriteString(" " + noneAvailable + "\n")
	} else {
		sb.WriteString("\n")
		for _, key := range sortedKeys(b.CrossFileRelationship) {
			list(&sb, 1, key, b.CrossFileRelationship[key])
		}
	}

	if in.Category != "" {
		scalar(&sb, 0, "categories", in.Category)
	}
	return sb.String()
}

func indent(level int) string {
	return strings.Repeat("    ", level)
}

func scalar(sb *strings.Builder, level int, key, value string) {
	if strings.TrimSpace(value) == "" {
		value = noneAvailable
	}
	fmt.Fprintf(sb, "%s%s: %s\n", indent(level), key, value)
}

func list(sb *strings.Builder, level int, key string, values []string) {
	if len(values) == 0 {
		scalar(sb, level, key, noneAvailable)
		return
	}
	scalar(sb, level, key, strings.Join(values, ", "))
}

func definitions(sb *strings.Builder, level int, defs map[string]string) {
	if len(defs) == 0 {
		scalar(sb, level, "definitions", noneAvailable)
		return
	}
	fmt.Fprintf(sb, "%sdefinitions:\n", indent(level))
	for _, name := range sortedKeys(defs) {
		fmt.Fprintf(sb, "%s%s:\n", indent(level+1), name)
		for _, line := range strings.Split(defs[name], "\n") {
			if line == "" {
				sb.WriteString("\n")
				continue
			}
			fmt.Fprintf(sb, "%s%s\n", indent(level+2), line)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
