// Package testlist discovers the test functions a run will execute. It
// walks a module directory for *_test.go files, parses them, and resolves
// package import paths through go.mod so every test gets its canonical
// Package::FuncName identity.
package testlist

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/ethereum-optimism/infra/op-paratest/types"
)

// Discover returns metadata for every test function found under rootDir.
// rootDir must be the root of a Go module; nested modules are skipped.
func Discover(rootDir string) ([]types.TestMetadata, error) {
	modulePath, err := ModulePath(rootDir)
	if err != nil {
		return nil, err
	}

	pkgDirs, err := FindTestPackages(rootDir)
	if err != nil {
		return nil, err
	}

	var tests []types.TestMetadata
	for _, rel := range pkgDirs {
		funcs, err := FindTestFunctions(rootDir, rel)
		if err != nil {
			return nil, err
		}

		importPath := modulePath
		if rel != "." {
			importPath = path.Join(modulePath, filepath.ToSlash(rel))
		}
		for _, funcName := range funcs {
			tests = append(tests, types.TestMetadata{
				ID:       types.TestKey(importPath, funcName),
				Package:  importPath,
				FuncName: funcName,
			})
		}
	}
	return tests, nil
}

// ModulePath reads the module path from rootDir's go.mod
func ModulePath(rootDir string) (string, error) {
	goModPath := filepath.Join(rootDir, "go.mod")
	goModContent, err := os.ReadFile(goModPath)
	if err != nil {
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}

	modFile, err := modfile.Parse(goModPath, goModContent, nil)
	if err != nil {
		return "", fmt.Errorf("failed to parse go.mod: %w", err)
	}
	if modFile.Module == nil || modFile.Module.Mod.Path == "" {
		return "", fmt.Errorf("could not find module name in go.mod")
	}
	return modFile.Module.Mod.Path, nil
}

// FindTestPackages walks rootDir and returns the directories containing
// *_test.go files, relative to rootDir ("." for the root itself), sorted.
// Vendored code, testdata, hidden directories and nested modules are
// skipped.
func FindTestPackages(rootDir string) ([]string, error) {
	if _, err := os.Stat(rootDir); err != nil {
		return nil, fmt.Errorf("test directory %s does not exist: %w", rootDir, err)
	}

	pkgSet := make(map[string]bool)
	err := filepath.WalkDir(rootDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p == rootDir {
				return nil
			}
			name := d.Name()
			if name == "vendor" || name == "testdata" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
				return filepath.SkipDir
			}
			// A nested go.mod marks a separate module.
			if _, statErr := os.Stat(filepath.Join(p, "go.mod")); statErr == nil {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), "_test.go") {
			rel, relErr := filepath.Rel(rootDir, filepath.Dir(p))
			if relErr != nil {
				return relErr
			}
			pkgSet[rel] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk test directory %s: %w", rootDir, err)
	}

	pkgs := make([]string, 0, len(pkgSet))
	for pkg := range pkgSet {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)
	return pkgs, nil
}

// FindTestFunctions parses the *_test.go files of one package directory and
// returns the names of its top-level test functions. Functions have to
// start with "Test" and not be "TestMain".
func FindTestFunctions(rootDir, pkgRel string) ([]string, error) {
	pkgDir := filepath.Join(rootDir, pkgRel)
	entries, err := os.ReadDir(pkgDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read package directory: %w", err)
	}

	var testFunctions []string
	fset := token.NewFileSet()

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "_test.go") {
			continue
		}

		filePath := filepath.Join(pkgDir, entry.Name())
		f, err := parser.ParseFile(fset, filePath, nil, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", entry.Name(), err)
		}

		for _, decl := range f.Decls {
			funcDecl, ok := decl.(*ast.FuncDecl)
			if !ok || funcDecl.Recv != nil {
				continue
			}
			if strings.HasPrefix(funcDecl.Name.Name, "Test") && funcDecl.Name.Name != "TestMain" {
				testFunctions = append(testFunctions, funcDecl.Name.Name)
			}
		}
	}
	return testFunctions, nil
}
