package project

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ternarybob/taskgate/internal/logger"
	"github.com/ternarybob/taskgate/internal/taskerr"
)

// maxDependencyNames caps how many dependency names Analyze records, so a
// pathological manifest (thousands of transitive locks) cannot blow up
// analysis time or snapshot size.
const maxDependencyNames = 500

// detector checks one manifest file and reports the Kind it implies.
type detector struct {
	file string
	kind Kind
}

// detectionOrder is spec.md §4.3's closed, priority-ordered detection list.
var detectionOrder = []detector{
	{"package.json", KindNode},
	{"Cargo.toml", KindRust},
	{"pyproject.toml", KindPython},
	{"requirements.txt", KindPython},
	{"go.mod", KindGo},
	{"pom.xml", KindJava},
	{"composer.json", KindPHP},
}

// Analyze inspects dir and returns a fully-populated Project record. It is
// idempotent: re-running it over an unchanged directory produces an
// identical record except for AnalyzedAt.
func Analyze(dir string) (*Project, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, taskerr.New(taskerr.NotFound, "project path %q does not exist", dir)
		}
		if os.IsPermission(err) {
			return nil, taskerr.New(taskerr.PermissionDenied, "cannot read project path %q", dir)
		}
		return nil, taskerr.New(taskerr.Internal, "stat %q: %v", dir, err)
	}
	if !info.IsDir() {
		return nil, taskerr.New(taskerr.BadRequest, "project path %q is not a directory", dir)
	}

	kind := detectKind(dir)

	// *.csproj requires a directory scan rather than a fixed filename.
	if kind == "" {
		if hasCSProj(dir) {
			kind = KindDotnet
		} else {
			kind = KindUnknown
		}
	}

	p := &Project{
		Path:          dir,
		Kind:          kind,
		BuildCommands: commandsFor(kind),
		AnalyzedAt:    time.Now(),
	}
	if kind == KindNode {
		p.BuildCommands = nodeBuildCommands(filepath.Join(dir, "package.json"))
	}

	p.Dependencies = parseDependencies(dir, kind)
	p.VCS = detectVCS(dir)

	return p, nil
}

func detectKind(dir string) Kind {
	for _, d := range detectionOrder {
		if fileExists(filepath.Join(dir, d.file)) {
			return d.kind
		}
	}
	return ""
}

func hasCSProj(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".csproj") {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func parseDependencies(dir string, kind Kind) []string {
	var deps []string

	switch kind {
	case KindNode:
		deps = parseNodeDeps(filepath.Join(dir, "package.json"))
	case KindRust:
		deps = parseRustDeps(filepath.Join(dir, "Cargo.toml"))
	case KindPython:
		if fileExists(filepath.Join(dir, "pyproject.toml")) {
			deps = parsePyprojectDeps(filepath.Join(dir, "pyproject.toml"))
		} else {
			deps = parseRequirementsTxt(filepath.Join(dir, "requirements.txt"))
		}
	case KindGo:
		deps = parseGoModDeps(filepath.Join(dir, "go.mod"))
	case KindPHP:
		deps = parseComposerDeps(filepath.Join(dir, "composer.json"))
	}

	// Map-backed manifests yield names in random order; sort so the record
	// (and any truncation below) is the same on every run.
	sort.Strings(deps)

	if len(deps) > maxDependencyNames {
		logger.GetLogger().Warn().Str("project", dir).Int("count", len(deps)).
			Msg("dependency list truncated at cap")
		deps = deps[:maxDependencyNames]
	}
	return deps
}

func parseNodeDeps(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil
	}
	var out []string
	for name := range manifest.Dependencies {
		out = append(out, name)
	}
	for name := range manifest.DevDependencies {
		out = append(out, name)
	}
	return out
}

// nodeBuildCommands returns node's build/test/lint triple with Build and
// Lint present only when package.json's "scripts" object actually defines
// them; "npm test" is always included since `npm test` is the universal
// node convention regardless of whether a "test" script is declared.
func nodeBuildCommands(path string) BuildCommands {
	bc := BuildCommands{Test: "npm test"}
	scripts := parseNodeScripts(path)
	if scripts["build"] {
		bc.Build = "npm run build"
	}
	if scripts["lint"] {
		bc.Lint = "npm run lint"
	}
	return bc
}

func parseNodeScripts(path string) map[string]bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var manifest struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil
	}
	out := make(map[string]bool, len(manifest.Scripts))
	for name := range manifest.Scripts {
		out[name] = true
	}
	return out
}

func parseRustDeps(path string) []string {
	var manifest struct {
		Dependencies map[string]toml.Primitive `toml:"dependencies"`
	}
	if _, err := toml.DecodeFile(path, &manifest); err != nil {
		return nil
	}
	var out []string
	for name := range manifest.Dependencies {
		out = append(out, name)
	}
	return out
}

func parsePyprojectDeps(path string) []string {
	var manifest struct {
		Project struct {
			Dependencies []string `toml:"dependencies"`
		} `toml:"project"`
	}
	if _, err := toml.DecodeFile(path, &manifest); err != nil {
		return nil
	}
	var out []string
	for _, d := range manifest.Project.Dependencies {
		// requirement specifiers look like "requests>=2.0"; keep the name only
		name := d
		for _, sep := range []string{">=", "<=", "==", "!=", "~=", ">", "<", " "} {
			if idx := strings.Index(name, sep); idx >= 0 {
				name = name[:idx]
			}
		}
		out = append(out, strings.TrimSpace(name))
	}
	return out
}

func parseRequirementsTxt(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		name := line
		for _, sep := range []string{">=", "<=", "==", "!=", "~=", ">", "<", ";"} {
			if idx := strings.Index(name, sep); idx >= 0 {
				name = name[:idx]
			}
		}
		out = append(out, strings.TrimSpace(name))
	}
	return out
}

func parseGoModDeps(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []string
	inBlock := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "require ("):
			inBlock = true
		case inBlock && line == ")":
			inBlock = false
		case inBlock:
			fields := strings.Fields(line)
			if len(fields) >= 1 {
				out = append(out, strings.TrimSuffix(fields[0], "//"))
			}
		case strings.HasPrefix(line, "require ") && !inBlock:
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				out = append(out, fields[1])
			}
		}
	}
	return out
}

func parseComposerDeps(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var manifest struct {
		Require map[string]string `json:"require"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil
	}
	var out []string
	for name := range manifest.Require {
		out = append(out, name)
	}
	return out
}

// detectVCS reads best-effort .git metadata; every field is individually
// nullable on any error, matching spec.md's "best-effort, never fails
// analysis" requirement.
func detectVCS(dir string) VCS {
	gitDir := filepath.Join(dir, ".git")
	if !fileExists(gitDir) {
		return VCS{}
	}

	var v VCS
	if branch := readHEADBranch(gitDir); branch != "" {
		v.Branch = &branch
	}
	if remote := readOriginRemote(gitDir); remote != "" {
		v.RemoteURL = &remote
	}
	if dirty, ok := readIsDirty(dir); ok {
		v.IsDirty = &dirty
	}
	return v
}

func readHEADBranch(gitDir string) string {
	data, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return ""
	}
	line := strings.TrimSpace(string(data))
	const prefix = "ref: refs/heads/"
	if strings.HasPrefix(line, prefix) {
		return strings.TrimPrefix(line, prefix)
	}
	return ""
}

func readOriginRemote(gitDir string) string {
	data, err := os.ReadFile(filepath.Join(gitDir, "config"))
	if err != nil {
		return ""
	}
	lines := strings.Split(string(data), "\n")
	inOrigin := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[remote \"origin\"]") {
			inOrigin = true
			continue
		}
		if strings.HasPrefix(trimmed, "[") {
			inOrigin = false
			continue
		}
		if inOrigin && strings.HasPrefix(trimmed, "url") {
			parts := strings.SplitN(trimmed, "=", 2)
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1])
			}
		}
	}
	return ""
}

func readIsDirty(dir string) (bool, bool) {
	cmd := exec.Command("git", "status", "--porcelain")
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return false, false
	}
	return out.Len() > 0, true
}
