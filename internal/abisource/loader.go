package abisource

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

type (
	// Surface names one of the two virtual contract interfaces.
	Surface string

	// Documents holds the parsed ABI of each surface.
	Documents struct {
		Token abi.ABI
		Proxy abi.ABI
	}
)

const (
	SurfaceToken Surface = "token"
	SurfaceProxy Surface = "proxy"
)

// fileNames are shared by the embedded documents and an override directory.
var fileNames = map[Surface]string{
	SurfaceToken: "ERC20.json",
	SurfaceProxy: "RegistryProxy.json",
}

//go:embed abi/*.json
var embeddedFS embed.FS

// Load reads both ABI documents from dir, or from the embedded copies when
// dir is empty.
func Load(dir string) (*Documents, error) {
	var source fs.FS
	if dir == "" {
		sub, err := fs.Sub(embeddedFS, "abi")
		if err != nil {
			return nil, fmt.Errorf("failed to open embedded ABI documents: %w", err)
		}
		source = sub
	} else {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("ABI directory not found. Directory: '%s': %w", dir, err)
		}
		source = os.DirFS(dir)
	}

	token, err := parseDocument(source, SurfaceToken)
	if err != nil {
		return nil, err
	}
	proxy, err := parseDocument(source, SurfaceProxy)
	if err != nil {
		return nil, err
	}

	return &Documents{Token: token, Proxy: proxy}, nil
}

// MustLoadEmbedded returns the embedded documents or panics.
func MustLoadEmbedded() *Documents {
	docs, err := Load("")
	if err != nil {
		panic(err)
	}
	return docs
}

// Path returns where Load looks for the given surface inside dir.
func Path(dir string, surface Surface) string {
	return filepath.Join(dir, fileNames[surface])
}

func parseDocument(source fs.FS, surface Surface) (abi.ABI, error) {
	name := fileNames[surface]
	data, err := fs.ReadFile(source, name)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to read %s ABI (%s): %w", surface, name, err)
	}

	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse %s ABI (%s): %w", surface, name, err)
	}

	if len(parsed.Methods) == 0 {
		return abi.ABI{}, fmt.Errorf("%s ABI (%s) declares no functions", surface, name)
	}

	return parsed, nil
}
