// Package cas provides content addressing for formula payloads: texts are
// identified by their farm hash so that parsed forms can be shared.
package cas

import (
	"github.com/dgryski/go-farm"
)

type Hash uint64

func HashBytes(b []byte) Hash {
	return Hash(farm.Hash64(b))
}

func HashString(s string) Hash {
	return HashBytes([]byte(s))
}
