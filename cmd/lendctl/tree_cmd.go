package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"lendeefi/internal/infra/crypto"
	"lendeefi/internal/infra/merkle"
	"lendeefi/pkg/offer"
)

func runTreeBuild(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tree build", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var offersPath, keyHex, outPath string
	fs.StringVar(&offersPath, "offers", "", "JSON array of claim terms (- for stdin)")
	fs.StringVar(&keyHex, "key-hex", "", "lender secp256k1 private key; signs the root when set")
	fs.StringVar(&outPath, "out", "", "output batch path (default stdout)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if offersPath == "" {
		fmt.Fprintln(stderr, "tree build requires --offers")
		return 1
	}

	var terms []offer.Terms
	if err := readJSON(offersPath, &terms); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	batch, err := offer.Build(terms)
	if err != nil {
		fmt.Fprintf(stderr, "build batch: %v\n", err)
		return 1
	}
	if keyHex != "" {
		key, err := crypto.ParsePrivateKey(keyHex)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		if err := batch.Sign(key); err != nil {
			fmt.Fprintf(stderr, "sign batch: %v\n", err)
			return 1
		}
	}
	if err := writeJSON(outPath, stdout, batch); err != nil {
		fmt.Fprintf(stderr, "write batch: %v\n", err)
		return 1
	}
	return 0
}

func runProofVerify(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("proof verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var batchPath, leafHex, rootHex, proofList string
	fs.StringVar(&batchPath, "batch", "", "batch JSON produced by tree build")
	fs.StringVar(&leafHex, "leaf", "", "claim hash")
	fs.StringVar(&rootHex, "root", "", "merkle root")
	fs.StringVar(&proofList, "proof", "", "comma separated proof hashes")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if batchPath != "" {
		var batch offer.Batch
		if err := readJSON(batchPath, &batch); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		if err := batch.Verify(); err != nil {
			fmt.Fprintf(stdout, "status=fail reason=%q\n", err.Error())
			return 1
		}
		fmt.Fprintf(stdout, "status=pass offers=%d root=%s\n", len(batch.Offers), batch.Root)
		return 0
	}

	if leafHex == "" || rootHex == "" {
		fmt.Fprintln(stderr, "proof verify requires --batch or --leaf and --root")
		return 1
	}
	leaf, err := offer.ParseHash("leaf", leafHex)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	root, err := offer.ParseHash("root", rootHex)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	var parts []string
	if proofList != "" {
		parts = strings.Split(proofList, ",")
	}
	proof, err := offer.ParseProof(parts)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if !merkle.VerifyProof(leaf, root, proof) {
		fmt.Fprintln(stdout, "status=fail")
		return 1
	}
	fmt.Fprintln(stdout, "status=pass")
	return 0
}
