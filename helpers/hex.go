package helpers

import (
	"encoding/hex"
	"strings"
)

// MustHex decodes hex string, spaces are ignored: "01 05 ff".
func MustHex(s string) []byte {
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		panic(err)
	}
	return b
}
