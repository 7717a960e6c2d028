package common

import (
	"embed"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// LoadABI parses path out of an embedded filesystem into an abi.ABI, the
// same go:embed-then-parse shape precompiles/erc20/erc20.go uses for its
// own abi.json, generalized here so every precompile package (bridge, xcc)
// shares one loader instead of repeating abi.JSON(bytes.NewReader(...)).
func LoadABI(fs embed.FS, path string) (abi.ABI, error) {
	f, err := fs.Open(path)
	if err != nil {
		return abi.ABI{}, err
	}
	defer f.Close()
	return abi.JSON(f)
}
