package validation

import (
	"bufio"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Error is one pattern violation found in module source.
type Error struct {
	File    string
	Line    int
	Message string
	Code    string
}

// forbiddenImports are packages a module may not depend on. Modules talk to
// the plant only through pkg/domain and the bus handed to them.
var forbiddenImports = map[string]string{
	"plantsim/internal/core":   "modules must not reach into the coordinator",
	"plantsim/internal/legacy": "modules must not import the legacy engine",
	"plantsim/internal/infra":  "modules must not depend on storage",
	"plantsim/internal/bridge": "snapshots are handed to modules, not built by them",
}

// legacyOwnerDirective exempts a file that wraps the legacy engine as a
// whole from the import and owner-call checks.
const legacyOwnerDirective = "//plantsim:legacy-owner"

// ownerCalls are PlantStateOwner mutators only the coordinator may invoke.
var ownerCalls = map[string]string{
	"RunLegacySimulationStep":        "only the coordinator advances the legacy engine",
	"ApplyModularPressurizerOutputs": "only the coordinator applies modular outputs to the owner",
	"ResetAll":                       "feature flags change only through the coordinator",
}

var antiPatterns = []struct {
	re      *regexp.Regexp
	message string
}{
	{regexp.MustCompile(`"(PZR_SURGE_FLOW|PZR_SPRAY_FLOW|PZR_HEATER_POWER|PZR_SPRAY_CONDENSED_MASS|PRIMARY_BOUNDARY_(IN|OUT)_MASS)"`),
		"Use the domain.Signal* constants instead of raw signal strings"},
	{regexp.MustCompile(`"(LEGACY|MODULAR_(PZR|CVCS|RHR|RCP|RCS|REACTOR))"`),
		"Use domain.AuthorityFor instead of raw authority strings"},
	{regexp.MustCompile(`\.events\s*=\s*append\(`),
		"Record transfers through a domain.TransferRecorder, not by appending to an event slice"},
}

// ValidateModuleDirectory scans the non-test Go files under dir.
func ValidateModuleDirectory(dir string) []Error {
	var errs []Error
	err := filepath.Walk(dir, func(path string, _ os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		errs = append(errs, validateModuleFile(path)...)
		return nil
	})
	if err != nil {
		errs = append(errs, Error{File: dir, Message: "Failed to walk directory: " + err.Error()})
	}
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].File != errs[j].File {
			return errs[i].File < errs[j].File
		}
		return errs[i].Line < errs[j].Line
	})
	return errs
}

func validateModuleFile(path string) []Error {
	return append(validateFileText(path), validateFileAST(path)...)
}

func validateFileText(path string) []Error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return []Error{{File: path, Message: "Failed to open file: " + err.Error()}}
	}
	defer func() { _ = f.Close() }()

	var errs []Error
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if strings.TrimSpace(text) == "" || isCommentLine(text) {
			continue
		}
		for _, p := range antiPatterns {
			if p.re.MatchString(text) {
				errs = append(errs, Error{File: path, Line: line, Message: p.message, Code: strings.TrimSpace(text)})
			}
		}
	}
	return errs
}

func validateFileAST(path string) []Error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil
	}
	if hasDirective(file, legacyOwnerDirective) {
		return nil
	}
	var errs []Error
	for _, imp := range file.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		for prefix, msg := range forbiddenImports {
			if p == prefix || strings.HasPrefix(p, prefix+"/") {
				pos := fset.Position(imp.Pos())
				errs = append(errs, Error{File: pos.Filename, Line: pos.Line, Message: msg, Code: p})
			}
		}
	}
	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if msg, bad := ownerCalls[sel.Sel.Name]; bad {
			pos := fset.Position(call.Pos())
			errs = append(errs, Error{File: pos.Filename, Line: pos.Line, Message: msg, Code: sel.Sel.Name + "(...)"})
		}
		return true
	})
	return errs
}

func hasDirective(file *ast.File, directive string) bool {
	for _, group := range file.Comments {
		for _, c := range group.List {
			if strings.TrimSpace(c.Text) == directive {
				return true
			}
		}
	}
	return false
}

func isCommentLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "/*")
}
