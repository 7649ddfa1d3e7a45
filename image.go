package v2495

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/marcinbor85/gohex"
	"github.com/spf13/afero"
)

// ImageSource fills buf with a complete firmware image. An image shorter
// than buf is an error; bytes past len(buf) are ignored.
type ImageSource interface {
	ReadImage(buf []byte) error
}

// FileImage loads an image from a file. Files ending in .hex, .ihex or .mcs
// are parsed as Intel HEX and must cover the image contiguously from
// address 0; anything else is read as raw binary.
type FileImage struct {
	Fs   afero.Fs // nil means the OS file system
	Path string
}

func (f FileImage) ReadImage(buf []byte) error {
	fs := f.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	file, err := fs.Open(f.Path)
	if err != nil {
		return newError(KindFileOpen, "load image", err)
	}
	defer file.Close()

	if isHexFile(f.Path) {
		return readHex(file, buf)
	}
	return readBinary(file, buf)
}

func (f FileImage) String() string { return f.Path }

// BytesImage is an in-memory raw image.
type BytesImage []byte

func (b BytesImage) ReadImage(buf []byte) error {
	return readBinary(bytes.NewReader(b), buf)
}

// ReaderImage reads a raw image from R.
type ReaderImage struct {
	R io.Reader
}

func (r ReaderImage) ReadImage(buf []byte) error {
	return readBinary(r.R, buf)
}

func isHexFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex", ".ihex", ".mcs":
		return true
	}
	return false
}

func readBinary(r io.Reader, buf []byte) error {
	n, err := io.ReadFull(r, buf)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return newError(KindInvalidFile, "load image", fmt.Errorf("image is %d bytes, want %d", n, len(buf)))
	case err != nil:
		return newError(KindInvalidFile, "load image", err)
	}
	return nil
}

func readHex(r io.Reader, buf []byte) error {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return newError(KindInvalidFile, "load image", err)
	}
	var next uint32
	for _, seg := range mem.GetDataSegments() {
		if int(next) >= len(buf) {
			break
		}
		if seg.Address != next {
			return newError(KindInvalidFile, "load image", fmt.Errorf("hex image has a gap at %#x", next))
		}
		copy(buf[next:], seg.Data)
		next += uint32(len(seg.Data))
	}
	if int(next) < len(buf) {
		return newError(KindInvalidFile, "load image", fmt.Errorf("image is %d bytes, want %d", next, len(buf)))
	}
	return nil
}
