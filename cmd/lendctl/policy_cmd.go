package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"lendeefi/internal/infra/crypto"
	"lendeefi/internal/infra/policyopa"
	"lendeefi/internal/usecase"
	"lendeefi/pkg/offer"

	"github.com/ethereum/go-ethereum/common"
)

// runPolicyEval dry-runs an origination bundle against one offer, the way
// the daemon would before creating the loan.
func runPolicyEval(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("policy eval", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var bundlePath, termsPath, callerHex string
	var now int64
	fs.StringVar(&bundlePath, "bundle", "", "rego bundle directory")
	fs.StringVar(&termsPath, "terms", "", "claim terms JSON file (- for stdin)")
	fs.StringVar(&callerHex, "caller", "", "borrower address")
	fs.Int64Var(&now, "now", 0, "evaluation time in unix seconds (default: current time)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if bundlePath == "" || termsPath == "" {
		fmt.Fprintln(stderr, "policy eval requires --bundle and --terms")
		return 1
	}

	var terms offer.Terms
	if err := readJSON(termsPath, &terms); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	ct, err := terms.ClaimTerms()
	if err != nil {
		fmt.Fprintf(stderr, "claim terms: %v\n", err)
		return 1
	}
	claimHash, err := crypto.ClaimHash(ct)
	if err != nil {
		fmt.Fprintf(stderr, "claim hash: %v\n", err)
		return 1
	}
	var caller common.Address
	if callerHex != "" {
		if caller, err = offer.ParseAddress("caller", callerHex); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	}
	at := time.Now()
	if now > 0 {
		at = time.Unix(now, 0)
	}

	ctx := context.Background()
	engine, err := policyopa.NewEngineFromBundlePath(ctx, bundlePath)
	if err != nil {
		fmt.Fprintf(stderr, "load policy bundle: %v\n", err)
		return 1
	}
	input := usecase.NewOriginationPolicyInput(claimHash, usecase.CreateLoanRequest{Terms: ct, Caller: caller}, at.UTC())
	eval, err := engine.Evaluate(ctx, input)
	if err != nil {
		fmt.Fprintf(stderr, "evaluate: %v\n", err)
		return 1
	}

	if err := writeJSON("", stdout, eval); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if !eval.Result.Allow {
		return 2
	}
	return 0
}
