package resource

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

// PreferredHashList orders the algorithms used for verification, strongest first.
var PreferredHashList = []string{"sha512", "sha256", "sha1"}

// NewHasher returns a hash.Hash for the given algorithm name.
func NewHasher(algorithm string) (hash.Hash, error) {
	switch strings.ToLower(algorithm) {
	case "sha1":
		return sha1.New(), nil
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	}
	return nil, fmt.Errorf("hash implementation %s not found", algorithm)
}

// BestHash picks the strongest supported hash declared in hashes.
func BestHash(hashes map[string]string) (algorithm, value string) {
	for _, algo := range PreferredHashList {
		if v, ok := hashes[algo]; ok && v != "" {
			return algo, strings.ToLower(v)
		}
	}
	return "", ""
}

// SameArtifact reports whether a and b declare the same bytes. Any common algorithm
// with equal digests is enough; records without a common algorithm never match.
func SameArtifact(a, b VersionRecord) bool {
	for _, algo := range PreferredHashList {
		av, aok := a.Hashes[algo]
		bv, bok := b.Hashes[algo]
		if aok && bok && av != "" {
			return strings.EqualFold(av, bv)
		}
	}
	return false
}

// HashFile computes the hex digest of the file at path.
func HashFile(path, algorithm string) (string, error) {
	h, err := NewHasher(algorithm)
	if err != nil {
		return "", err
	}
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
