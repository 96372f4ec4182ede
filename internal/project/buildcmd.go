package project

// buildCommandTable is spec.md §4.3's conventional build/test/lint table,
// grounded on theRebelliousNerd-codenerd's detectBuildCommand/
// detectTestCommand (internal/tools/shell/execute.go), generalized from a
// build-or-test pair to the full build/test/lint triple this spec needs.
//
// KindNode has no entry here: its Build/Lint commands are conditional on
// package.json's own "scripts" object (spec.md §4.3 - "npm run build if
// build script present", "npm run lint if present"), so nodeBuildCommands
// in analyzer.go computes them directly instead of using this table.
var buildCommandTable = map[Kind]BuildCommands{
	KindPython: {Test: "pytest"},
	KindRust:   {Build: "cargo build", Test: "cargo test", Lint: "cargo clippy"},
	KindJava:   {Build: "mvn package", Test: "mvn test"},
	KindGo:     {Build: "go build ./...", Test: "go test ./...", Lint: "go vet ./..."},
	KindPHP:    {Build: "composer install", Test: "phpunit"},
	KindDotnet: {Build: "dotnet build", Test: "dotnet test"},
}

func commandsFor(k Kind) BuildCommands {
	return buildCommandTable[k]
}
