package main

import (
	"flag"
	"fmt"
	"io"

	"lendeefi/internal/domain"
	"lendeefi/internal/infra/crypto"
	"lendeefi/pkg/offer"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

func runRootSign(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("root sign", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var rootHex, keyHex string
	fs.StringVar(&rootHex, "root", "", "merkle root to sign")
	fs.StringVar(&keyHex, "key-hex", "", "lender secp256k1 private key")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if rootHex == "" || keyHex == "" {
		fmt.Fprintln(stderr, "root sign requires --root and --key-hex")
		return 1
	}
	root, err := offer.ParseHash("root", rootHex)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	key, err := crypto.ParsePrivateKey(keyHex)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	sig, err := crypto.SignRoot(key, root)
	if err != nil {
		fmt.Fprintf(stderr, "sign root: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, hexutil.Encode(sig))
	return 0
}

func runSignerRecover(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("signer recover", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var rootHex, sigHex string
	fs.StringVar(&rootHex, "root", "", "signed merkle root")
	fs.StringVar(&sigHex, "signature", "", "65-byte signature")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if rootHex == "" || sigHex == "" {
		fmt.Fprintln(stderr, "signer recover requires --root and --signature")
		return 1
	}
	root, err := offer.ParseHash("root", rootHex)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	sig, err := crypto.ParseSignature(sigHex)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	signer, err := crypto.RecoverSigner(domain.PersonalDigest(root), sig)
	if err != nil {
		fmt.Fprintf(stderr, "recover signer: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, signer.Hex())
	return 0
}
