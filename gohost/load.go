// Package gohost runs inference over Go source code.
//
// It is a host traversal engine for the inference core: elements are the objects of
// go/types, trees wrap the go/ast expressions of the loaded packages, and a Checker walks
// every function body generating constraints.
package gohost

import (
	"context"
	"fmt"
	"strings"

	"github.com/cottand/qinfer/internal/log"
	gopackages "golang.org/x/tools/go/packages"
)

var logger = log.DefaultLogger.With("section", "gohost")

func loadConfig(ctx context.Context, dir string) *gopackages.Config {
	return &gopackages.Config{
		Context: ctx,
		Dir:     dir,
		Mode: gopackages.NeedName | gopackages.NeedFiles | gopackages.NeedImports |
			gopackages.NeedSyntax | gopackages.NeedTypes | gopackages.NeedTypesInfo,
	}
}

// Load loads and type-checks the packages matching patterns, relative to dir
func Load(ctx context.Context, dir string, patterns ...string) ([]*gopackages.Package, error) {
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	pkgs, err := gopackages.Load(loadConfig(ctx, dir), patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load Go packages: %w", err)
	}
	var errs []string
	gopackages.Visit(pkgs, nil, func(pkg *gopackages.Package) {
		for _, e := range pkg.Errors {
			errs = append(errs, e.Error())
		}
	})
	if len(errs) > 0 {
		return nil, fmt.Errorf("errors when loading Go packages:\n%s", strings.Join(errs, "\n"))
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no Go packages match %v in %s", patterns, dir)
	}
	for _, pkg := range pkgs {
		logger.Debug("loaded package", "path", pkg.PkgPath, "files", len(pkg.Syntax))
	}
	return pkgs, nil
}
