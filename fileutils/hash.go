package fileutils

import (
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cespare/xxhash"
)

// ComputeHash returns the hash of the reader.
// It will read the entire contents of the reader. It will not close the reader.
func ComputeHash(r io.Reader) (uint64, error) {
	hash := xxhash.New()
	_, err := io.Copy(hash, r)
	if err != nil {
		return 0, err
	}
	return hash.Sum64(), nil
}

// ComputeFileHash returns the hash of the file at path.
func ComputeFileHash(path string) (hash uint64, err error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()

	return ComputeHash(file)
}

// ComputeNamesHash hashes an ordered list of names as a fixed width hex string.
// Names are NUL separated so ["ab", "c"] and ["a", "bc"] differ.
func ComputeNamesHash(names []string) string {
	// strings.Reader never fails.
	hash, _ := ComputeHash(strings.NewReader(strings.Join(names, "\x00")))
	return FormatHash(hash)
}

func FormatHash(hash uint64) string {
	s := strconv.FormatUint(hash, 16)
	return strings.Repeat("0", 16-len(s)) + s
}
