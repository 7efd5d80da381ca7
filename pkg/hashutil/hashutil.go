package hashutil

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

type HashAlgo string

const (
	HashAlgoSHA256 = "sha256"
	HashAlgoBLAKE3 = "blake3"
	// HashAlgoMD5 backs the Bloom filter's hash family and the file sink's
	// short on-disk filenames; the file sink also uses it for the content
	// hash it reports in WriteResult.
	HashAlgoMD5 = "md5"
)

// HashBytes returns the hash of bytes as a hex string using the specified algorithm.
// Supported algorithms: "sha256", "blake3" and "md5".
func HashBytes(data []byte, algo HashAlgo) (string, error) {
	switch algo {
	case HashAlgoSHA256:
		return hashBytesSha256(data), nil
	case HashAlgoBLAKE3:
		return hashBytesBlake3(data), nil
	case HashAlgoMD5:
		return hashBytesMd5(data), nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
}

func hashBytesSha256(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func hashBytesBlake3(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func hashBytesMd5(data []byte) string {
	hash := md5.Sum(data)
	return hex.EncodeToString(hash[:])
}
