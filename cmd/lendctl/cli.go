package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 3 {
		usage(args, stderr)
		return 1
	}

	switch args[1] + " " + args[2] {
	case "claim hash":
		return runClaimHash(args[3:], stdout, stderr)
	case "tree build":
		return runTreeBuild(args[3:], stdout, stderr)
	case "root sign":
		return runRootSign(args[3:], stdout, stderr)
	case "proof verify":
		return runProofVerify(args[3:], stdout, stderr)
	case "signer recover":
		return runSignerRecover(args[3:], stdout, stderr)
	case "policy eval":
		return runPolicyEval(args[3:], stdout, stderr)
	}

	usage(args, stderr)
	return 1
}

func usage(args []string, w io.Writer) {
	name := "lendctl"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(w, "usage:\n")
	fmt.Fprintf(w, "  %s claim hash --terms <terms.json>\n", name)
	fmt.Fprintf(w, "  %s tree build --offers <offers.json> [--key-hex <hex>] [--out <batch.json>]\n", name)
	fmt.Fprintf(w, "  %s root sign --root <0x..> --key-hex <hex>\n", name)
	fmt.Fprintf(w, "  %s proof verify (--batch <batch.json> | --leaf <0x..> --root <0x..> --proof <0x..,0x..>)\n", name)
	fmt.Fprintf(w, "  %s signer recover --root <0x..> --signature <0x..>\n", name)
	fmt.Fprintf(w, "  %s policy eval --bundle <dir> --terms <terms.json> [--caller <0x..>] [--now <unix>]\n", name)
}

// readJSON decodes path into out; "-" reads stdin.
func readJSON(path string, out any) error {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, stdout io.Writer, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	if path == "" || path == "-" {
		_, err = stdout.Write(raw)
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
