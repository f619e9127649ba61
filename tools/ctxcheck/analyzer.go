// Package ctxcheck reports fresh root contexts created where a caller's
// context should be propagated instead.
//
// A call to context.Background or context.TODO is accepted in:
//   - main and init functions
//   - tests, benchmarks, examples and helpers that call t.Helper()
//   - shutdown paths (functions named Shutdown, Stop or Close), which run
//     after the parent context is already cancelled
//   - lines carrying a ctxcheck:ignore comment on the same or previous line
//
// Usage:
//
//	go run ./tools/ctxcheck/cmd/ctxcheck ./...
package ctxcheck

import (
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// IgnoreDirective silences a report on its line or the line below
const IgnoreDirective = "ctxcheck:ignore"

// Analyzer is the root context checker
var Analyzer = &analysis.Analyzer{
	Name:     "ctxcheck",
	Doc:      "report context.Background and context.TODO outside entry points, tests and shutdown paths",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

var shutdownFuncs = map[string]bool{
	"Shutdown": true,
	"Stop":     true,
	"Close":    true,
}

func run(pass *analysis.Pass) (interface{}, error) {
	ins := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	ins.WithStack([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node, push bool, stack []ast.Node) bool {
		if !push {
			return true
		}
		call := n.(*ast.CallExpr)
		name := rootContextCall(pass.TypesInfo, call)
		if name == "" {
			return true
		}

		fn := enclosingFunc(stack)
		if fn != nil && allowed(pass, fn) {
			return true
		}
		if hasIgnoreDirective(pass, call) {
			return true
		}

		where := "package scope"
		if fn != nil {
			where = fn.Name.Name
		}
		pass.Reportf(call.Pos(), "context.%s() in %s: accept a context.Context from the caller", name, where)
		return true
	})

	return nil, nil
}

// rootContextCall returns "Background" or "TODO" when call invokes that
// function of the standard context package
func rootContextCall(info *types.Info, call *ast.CallExpr) string {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return ""
	}
	fn, ok := info.Uses[sel.Sel].(*types.Func)
	if !ok || fn.Pkg() == nil || fn.Pkg().Path() != "context" {
		return ""
	}
	if fn.Name() == "Background" || fn.Name() == "TODO" {
		return fn.Name()
	}
	return ""
}

// enclosingFunc returns the innermost declared function on the stack.
// Closures inherit the rules of the function they are declared in.
func enclosingFunc(stack []ast.Node) *ast.FuncDecl {
	for i := len(stack) - 1; i >= 0; i-- {
		if fd, ok := stack[i].(*ast.FuncDecl); ok {
			return fd
		}
	}
	return nil
}

func allowed(pass *analysis.Pass, fn *ast.FuncDecl) bool {
	name := fn.Name.Name

	switch {
	case name == "main" && pass.Pkg.Name() == "main":
		return true
	case name == "init" && fn.Recv == nil:
		return true
	case shutdownFuncs[name]:
		return true
	}

	if !strings.HasSuffix(pass.Fset.Position(fn.Pos()).Filename, "_test.go") {
		return false
	}
	for _, prefix := range []string{"Test", "Benchmark", "Fuzz", "Example"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return callsHelper(fn)
}

// callsHelper reports whether fn calls Helper() on a testing value
func callsHelper(fn *ast.FuncDecl) bool {
	if fn.Body == nil {
		return false
	}
	found := false
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		if found {
			return false
		}
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		if sel, ok := call.Fun.(*ast.SelectorExpr); ok && sel.Sel.Name == "Helper" && len(call.Args) == 0 {
			found = true
		}
		return true
	})
	return found
}

func hasIgnoreDirective(pass *analysis.Pass, call *ast.CallExpr) bool {
	pos := pass.Fset.Position(call.Pos())

	for _, f := range pass.Files {
		if pass.Fset.Position(f.Pos()).Filename != pos.Filename {
			continue
		}
		for _, cg := range f.Comments {
			for _, c := range cg.List {
				line := pass.Fset.Position(c.Slash).Line
				if (line == pos.Line || line == pos.Line-1) && strings.Contains(c.Text, IgnoreDirective) {
					return true
				}
			}
		}
		return false
	}
	return false
}
