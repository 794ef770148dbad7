package utils

import (
	"crypto/md5"
	"fmt"
)

// HashString gives a stable hex name for user-supplied identifiers so they
// can be used in file names and cache keys without sanitizing.
func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}
