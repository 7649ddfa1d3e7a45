//go:build !unix

package cli

import (
	"errors"

	"github.com/gentam/v2495/reg"
)

func openMMIO(string, int64) (reg.Transport, error) {
	return nil, errors.New("mmio link is not supported on this platform")
}
