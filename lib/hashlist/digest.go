// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hashlist

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// HashReader returns the XXH64 digest of everything read from r, in
// the lower-case big-endian hex form hash lists record.
func HashReader(r io.Reader) (string, error) {
	digest := xxhash.New()
	if _, err := io.Copy(digest, r); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", digest.Sum64()), nil
}

// HashFile returns the XXH64 digest of the file at path.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hashlist: %w", err)
	}
	defer file.Close()
	sum, err := HashReader(file)
	if err != nil {
		return "", fmt.Errorf("hashlist: hashing %s: %w", path, err)
	}
	return sum, nil
}
