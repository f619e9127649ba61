package ctxcheck

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/analysis/analysistest"
)

func TestAnalyzer(t *testing.T) {
	testdata := analysistest.TestData()
	analysistest.Run(t, testdata, Analyzer, "a", "b")
}

func TestRootContextCall(t *testing.T) {
	tests := []struct {
		name string
		code string
		want []string
	}{
		{
			name: "background and todo",
			code: `package p
import "context"
var _ = context.Background()
var _ = context.TODO()`,
			want: []string{"Background", "TODO"},
		},
		{
			name: "renamed import",
			code: `package p
import stdctx "context"
var _ = stdctx.Background()`,
			want: []string{"Background"},
		},
		{
			name: "derived context is not a root",
			code: `package p
import "context"
func f(ctx context.Context) { _, _ = context.WithCancel(ctx) }`,
			want: nil,
		},
		{
			name: "method named Background",
			code: `package p
type store struct{}
func (store) Background() int { return 0 }
var _ = store{}.Background()`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fset := token.NewFileSet()
			f, err := parser.ParseFile(fset, "p.go", tt.code, 0)
			require.NoError(t, err)

			info := &types.Info{Uses: make(map[*ast.Ident]types.Object)}
			conf := types.Config{Importer: importer.Default()}
			_, err = conf.Check("p", fset, []*ast.File{f}, info)
			require.NoError(t, err)

			var got []string
			ast.Inspect(f, func(n ast.Node) bool {
				if call, ok := n.(*ast.CallExpr); ok {
					if name := rootContextCall(info, call); name != "" {
						got = append(got, name)
					}
				}
				return true
			})
			assert.Equal(t, tt.want, got)
		})
	}
}
