package policyopa

import "github.com/open-policy-agent/opa/ast"

// allowedBuiltins lists the only functions an origination bundle may call.
// Anything reading the clock, the network or randomness is excluded so a
// bundle evaluates identically for identical input.
var allowedBuiltins = map[string]struct{}{
	"abs":               {},
	"assign":            {},
	"ceil":              {},
	"concat":            {},
	"contains":          {},
	"count":             {},
	"div":               {},
	"endswith":          {},
	"eq":                {},
	"equal":             {},
	"floor":             {},
	"format_int":        {},
	"gt":                {},
	"gte":               {},
	"internal.member_2": {},
	"lower":             {},
	"lt":                {},
	"lte":               {},
	"max":               {},
	"min":               {},
	"minus":             {},
	"mul":               {},
	"neq":               {},
	"object.get":        {},
	"plus":              {},
	"rem":               {},
	"sort":              {},
	"sprintf":           {},
	"startswith":        {},
	"sum":               {},
	"to_number":         {},
	"upper":             {},
}

func filterBuiltins(builtins []*ast.Builtin) []*ast.Builtin {
	allowed := make([]*ast.Builtin, 0, len(allowedBuiltins))
	for _, builtin := range builtins {
		if _, ok := allowedBuiltins[builtin.Name]; ok {
			allowed = append(allowed, builtin)
		}
	}
	return allowed
}
