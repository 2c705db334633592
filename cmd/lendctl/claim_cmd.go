package main

import (
	"flag"
	"fmt"
	"io"

	"lendeefi/internal/infra/crypto"
	"lendeefi/pkg/offer"
)

func runClaimHash(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("claim hash", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var termsPath string
	fs.StringVar(&termsPath, "terms", "", "claim terms JSON file (- for stdin)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if termsPath == "" {
		fmt.Fprintln(stderr, "claim hash requires --terms")
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
	h, err := crypto.ClaimHash(ct)
	if err != nil {
		fmt.Fprintf(stderr, "claim hash: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, h.Hex())
	return 0
}
