package usecase

import (
	"encoding/json"

	"github.com/zeebo/xxh3"
)

// encodeProjection is the canonical encoding change detection compares on.
func encodeProjection(p persistedProjection) []byte {
	raw, err := json.Marshal(p)
	if err != nil {
		// projections are plain structs of strings, bools, and slices;
		// Marshal cannot fail on them
		panic(err)
	}
	return raw
}

// fingerprint condenses an encoding for a cheap first-pass mismatch check. A
// matching fingerprint is not proof of equality; callers settle that on the
// encodings themselves.
func fingerprint(raw []byte) uint64 {
	return xxh3.Hash(raw)
}
