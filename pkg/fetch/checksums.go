// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// Algorithm is a supported checksum algorithm.
//
// Checksums are written "algorithm:hexvalue" (e.g. "sha1:c0ffee..."). Bare
// hex values are accepted and the algorithm is guessed from their length.
type Algorithm int

const (
	SHA1 Algorithm = iota
	SHA256
	SHA512
)

func (a Algorithm) String() string {
	switch a {
	case SHA1:
		return "sha1"
	case SHA256:
		return "sha256"
	case SHA512:
		return "sha512"
	default:
		return "unknown"
	}
}

// New returns a fresh hash for the algorithm.
func (a Algorithm) New() hash.Hash {
	switch a {
	case SHA256:
		return sha256.New()
	case SHA512:
		return sha512.New()
	default:
		return sha1.New()
	}
}

// ParseChecksum splits a checksum string into algorithm and lowercase hex.
func ParseChecksum(checksum string) (Algorithm, string, error) {
	if algo, value, ok := strings.Cut(checksum, ":"); ok {
		var a Algorithm
		switch strings.ToLower(algo) {
		case "sha1":
			a = SHA1
		case "sha256":
			a = SHA256
		case "sha512":
			a = SHA512
		default:
			return SHA1, "", fmt.Errorf("unknown checksum algorithm: %s", algo)
		}
		if value == "" {
			return SHA1, "", fmt.Errorf("invalid checksum format: %s", checksum)
		}
		return a, strings.ToLower(value), nil
	}

	// Legacy format - guess based on length
	switch len(checksum) {
	case 64:
		return SHA256, strings.ToLower(checksum), nil
	case 128:
		return SHA512, strings.ToLower(checksum), nil
	case 40:
		return SHA1, strings.ToLower(checksum), nil
	default:
		return SHA1, "", fmt.Errorf("invalid checksum format: %s", checksum)
	}
}

// ChecksumError describes content that does not hash to the expected value.
// It wraps ErrChecksumMismatch so callers can use errors.Is.
type ChecksumError struct {
	Path     string
	Expected string
	Got      string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.Path, e.Expected, e.Got)
}

// Unwrap returns ErrChecksumMismatch.
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// ComputeFileChecksum streams the file at path through algo and returns the
// prefixed checksum.
func ComputeFileChecksum(path string, algo Algorithm) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()

	h := algo.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file %s: %w", path, err)
	}
	return algo.String() + ":" + hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyFile checks the file at path against checksum. It returns nil on a
// match, a *ChecksumError on a mismatch and the underlying error when the
// file cannot be read.
func VerifyFile(path, checksum string) error {
	algo, expected, err := ParseChecksum(checksum)
	if err != nil {
		return err
	}
	got, err := ComputeFileChecksum(path, algo)
	if err != nil {
		return err
	}
	if got != algo.String()+":"+expected {
		return &ChecksumError{Path: path, Expected: algo.String() + ":" + expected, Got: got}
	}
	return nil
}
