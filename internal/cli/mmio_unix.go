//go:build unix

package cli

import (
	"github.com/gentam/v2495/mmio"
	"github.com/gentam/v2495/reg"
)

func openMMIO(path string, base int64) (reg.Transport, error) {
	m, err := mmio.Open(path, base, mmio.DefaultSize)
	if err != nil {
		return nil, err
	}
	return m, nil
}
