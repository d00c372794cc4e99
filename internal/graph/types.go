package graph

type RelationKind string

const (
	RelationImports     RelationKind = "imports"
	RelationImportsFrom RelationKind = "imports_from"
)

type UnresolvedReason string

const (
	ReasonNoCandidate UnresolvedReason = "no_candidate"
	ReasonOutsideRoot UnresolvedReason = "outside_root"
	ReasonSelf        UnresolvedReason = "self_import"
)

// Module is the graph-domain node payload: one source file of the project.
type Module struct {
	ID        string   `json:"id"` // dotted module name, e.g. "pkg.models"
	Filepath  string   `json:"filepath"`
	IsPackage bool     `json:"is_package"` // an __init__.py
	Imports   []Import `json:"imports,omitempty"`
}

// Import is one imported name as written in the source.
type Import struct {
	Target string       `json:"target"` // module as written, relative dots kept
	Name   string       `json:"name,omitempty"`
	Kind   RelationKind `json:"kind"`
	Line   int          `json:"line"`
}

type UnresolvedRelation struct {
	From   string           `json:"from"`
	Target string           `json:"target"`
	Kind   RelationKind     `json:"kind"`
	Reason UnresolvedReason `json:"reason"`
}
