package policyopa

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"lendeefi/internal/domain"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
)

const OriginationQuery = "data.lendeefi.origination.result"

// Engine evaluates a prepared origination bundle. It is safe for concurrent
// use.
type Engine struct {
	query      rego.PreparedEvalQuery
	bundleHash string
}

func NewEngineFromBundlePath(ctx context.Context, bundlePath string) (*Engine, error) {
	bundleHash, err := ComputeBundleHash(bundlePath)
	if err != nil {
		return nil, fmt.Errorf("hash bundle: %w", err)
	}

	capabilities := ast.CapabilitiesForThisVersion()
	capabilities.Builtins = filterBuiltins(capabilities.Builtins)
	compiler := ast.NewCompiler().WithCapabilities(capabilities)

	r := rego.New(
		rego.Query(OriginationQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{bundlePath}, nil),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy: %w", err)
	}
	if names := forbiddenBuiltins(compiler); len(names) > 0 {
		return nil, fmt.Errorf("forbidden builtins: %s", strings.Join(names, ", "))
	}
	return &Engine{query: prepared, bundleHash: bundleHash}, nil
}

func (e *Engine) BundleHash() string {
	return e.bundleHash
}

// Evaluate runs the bundle against one offer. A result carrying any deny
// entry is a deny, whatever the bundle set allow to.
func (e *Engine) Evaluate(ctx context.Context, input domain.OriginationPolicyInput) (domain.PolicyEvaluation, error) {
	if e == nil {
		return domain.PolicyEvaluation{}, errors.New("policy engine is nil")
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return domain.PolicyEvaluation{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.PolicyEvaluation{}, errors.New("empty policy result")
	}
	result, err := originationResult(results[0].Expressions[0].Value)
	if err != nil {
		return domain.PolicyEvaluation{}, fmt.Errorf("decode %s: %w", OriginationQuery, err)
	}
	return domain.PolicyEvaluation{BundleHash: e.bundleHash, Result: result}, nil
}

// originationResult reads {"allow": bool, "deny": [...]} straight from the
// evaluated value. Deny entries are objects with a code and optional
// message, or bare code strings. They come back ordered by code.
func originationResult(value any) (domain.PolicyResult, error) {
	doc, ok := value.(map[string]any)
	if !ok {
		return domain.PolicyResult{}, fmt.Errorf("result is %T, want object", value)
	}
	var result domain.PolicyResult
	if raw, present := doc["allow"]; present {
		allow, ok := raw.(bool)
		if !ok {
			return domain.PolicyResult{}, fmt.Errorf("allow is %T, want bool", raw)
		}
		result.Allow = allow
	}
	entries, _ := doc["deny"].([]any)
	for i, entry := range entries {
		deny, err := denyEntry(entry)
		if err != nil {
			return domain.PolicyResult{}, fmt.Errorf("deny[%d]: %w", i, err)
		}
		result.Deny = append(result.Deny, deny)
	}
	if len(result.Deny) > 0 {
		result.Allow = false
		slices.SortFunc(result.Deny, func(a, b domain.PolicyDeny) int {
			if c := cmp.Compare(a.Code, b.Code); c != 0 {
				return c
			}
			return cmp.Compare(a.Message, b.Message)
		})
	}
	return result, nil
}

func denyEntry(entry any) (domain.PolicyDeny, error) {
	switch v := entry.(type) {
	case string:
		return domain.PolicyDeny{Code: v}, nil
	case map[string]any:
		code, _ := v["code"].(string)
		if code == "" {
			return domain.PolicyDeny{}, errors.New("missing code")
		}
		message, _ := v["message"].(string)
		return domain.PolicyDeny{Code: code, Message: message}, nil
	}
	return domain.PolicyDeny{}, fmt.Errorf("unsupported entry %T", entry)
}

// forbiddenBuiltins lists, sorted, the builtins called by compiled modules
// that are missing from allowedBuiltins.
func forbiddenBuiltins(compiler *ast.Compiler) []string {
	var names []string
	for _, module := range compiler.Modules {
		ast.WalkTerms(module, func(term *ast.Term) bool {
			call, ok := term.Value.(ast.Call)
			if !ok || len(call) == 0 || call[0] == nil {
				return false
			}
			name := call[0].Value.String()
			if _, builtin := ast.BuiltinMap[name]; builtin {
				if _, allowed := allowedBuiltins[name]; !allowed {
					names = append(names, name)
				}
			}
			return false
		})
	}
	slices.Sort(names)
	return slices.Compact(names)
}
