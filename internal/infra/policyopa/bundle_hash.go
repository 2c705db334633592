package policyopa

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

type bundleFile struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// ComputeBundleHash digests the normative files of the bundle at dir: rego
// modules and data.json documents. Editor droppings and archives are ignored.
func ComputeBundleHash(dir string) (string, error) {
	return ComputeBundleHashFS(os.DirFS(dir))
}

func ComputeBundleHashFS(fsys fs.FS) (string, error) {
	var files []bundleFile
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == "." {
			return nil
		}
		base := path.Base(p)
		if d.IsDir() {
			if strings.HasPrefix(base, ".") || base == "vendor" || base == "__MACOSX" {
				return fs.SkipDir
			}
			return nil
		}
		if !normative(base) {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		files = append(files, bundleFile{Path: p, SHA256: hexSum(data)})
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	payload, err := json.Marshal(struct {
		Files []bundleFile `json:"files"`
	}{Files: files})
	if err != nil {
		return "", err
	}
	return "sha256:" + hexSum(payload), nil
}

func normative(base string) bool {
	if strings.HasPrefix(base, ".") {
		return false
	}
	return base == "data.json" || strings.HasSuffix(base, ".rego")
}

func hexSum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
