// Command ctxcheck runs the root context checker over socdash packages.
//
// Usage:
//
//	go run ./tools/ctxcheck/cmd/ctxcheck ./...
package main

import (
	"socdash/tools/ctxcheck"

	"golang.org/x/tools/go/analysis/singlechecker"
)

func main() {
	singlechecker.Main(ctxcheck.Analyzer)
}
