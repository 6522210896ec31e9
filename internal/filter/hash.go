package filter

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash returns the content hash of a parsed filter: hex SHA-256 of its
// canonical JSON form. Two documents that differ only in formatting, key
// order, comments or source syntax (TOML vs YAML) hash the same. The name is
// excluded because it depends on where the document is stored.
func Hash(f *Filter) (string, error) {
	data, err := Canonical(f)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Canonical serializes f into its normalized form. encoding/json emits struct
// fields in declaration order and map keys sorted, which makes it stable.
func Canonical(f *Filter) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("canonical filter: %w", err)
	}
	return data, nil
}
