package catalog

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/cel-go/cel"

	"github.com/cognicore/protectag/pkg/protectag/internalerr"
	"github.com/cognicore/protectag/pkg/protectag/product"
)

// Filter is a compiled CEL predicate over a product. The expression sees one
// variable, product, with keys id, title, vendor, product_type, tags and
// description, e.g. `"gift-card" in product.tags || product.vendor == "Acme"`.
type Filter struct {
	Expression string
	program    cel.Program
}

// NewFilter compiles expression. An empty expression returns a nil Filter.
func NewFilter(expression string) (*Filter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("product", cel.MapType(cel.StringType, cel.AnyType)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create CEL environment")
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Mark(errors.Wrapf(issues.Err(), "compile exclude expression %q", expression), internalerr.ErrInvalidConfig)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "create CEL program")
	}
	return &Filter{Expression: expression, program: prg}, nil
}

// Excludes evaluates the predicate against p.
func (f *Filter) Excludes(p product.Product) (bool, error) {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	out, _, err := f.program.Eval(map[string]any{
		"product": map[string]any{
			"id":           p.ID,
			"title":        p.Title,
			"vendor":       p.Vendor,
			"product_type": p.ProductType,
			"tags":         tags,
			"description":  p.Description,
		},
	})
	if err != nil {
		return false, errors.Wrapf(err, "evaluate exclude expression for %s", p.ID)
	}
	v, ok := out.Value().(bool)
	if !ok {
		return false, errors.Newf("exclude expression returned %T, want bool", out.Value())
	}
	return v, nil
}
