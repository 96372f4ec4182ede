// Package project implements the Project Analyzer (ecosystem detection,
// build/test/lint command inference, VCS metadata) and the in-memory
// Project Registry. No project record is persisted to disk: spec.md's
// non-goal on cross-restart persistence applies to project state as much
// as to task state, so unlike the teacher's internal/project/registry.go
// (which backs its registry with a JSON file), this registry never reads
// or writes one.
package project

import "time"

// Kind is a detected project ecosystem.
type Kind string

const (
	KindPython  Kind = "python"
	KindNode    Kind = "node"
	KindRust    Kind = "rust"
	KindJava    Kind = "java"
	KindGo      Kind = "go"
	KindPHP     Kind = "php"
	KindDotnet  Kind = "dotnet"
	KindUnknown Kind = "unknown"
)

// BuildCommands is the conventional build/test/lint command triple for a
// detected Kind. Any field may be empty when the ecosystem has no
// conventional equivalent (e.g. python has no universal build step).
type BuildCommands struct {
	Build string
	Test  string
	Lint  string
}

// VCS is best-effort, individually-nullable source-control metadata.
type VCS struct {
	Branch    *string
	RemoteURL *string
	IsDirty   *bool
}

// Project is one analyzed directory's record.
type Project struct {
	Path          string
	Kind          Kind
	Dependencies  []string
	BuildCommands BuildCommands
	VCS           VCS
	AnalyzedAt    time.Time
}
