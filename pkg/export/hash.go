package export

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"os"
	"strings"
)

// BundleContentType is served for launch bundles
const BundleContentType = "application/javascript"

const defaultContentType = "application/octet-stream"

// HashFile hashes the file at path in one pass and fills in the Asset keys.
func HashFile(path, ext string) (Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to open asset: %w", err)
	}
	defer f.Close()

	sha := sha256.New()
	sum := md5.New()
	size, err := io.Copy(io.MultiWriter(sha, sum), f)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	ext = strings.TrimPrefix(ext, ".")
	digest := base64.RawURLEncoding.EncodeToString(sha.Sum(nil))
	return Asset{
		Path:        path,
		Ext:         ext,
		ContentType: ContentType(ext),
		SHA256:      digest,
		StorageKey:  digest,
		BundleKey:   hex.EncodeToString(sum.Sum(nil)),
		Size:        size,
	}, nil
}

// ContentType returns the MIME type for a file extension.
func ContentType(ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	switch ext {
	case "":
		return defaultContentType
	case "js", "bundle", "hbc":
		return BundleContentType
	case "ttf":
		return "font/ttf"
	case "otf":
		return "font/otf"
	}
	if t := mime.TypeByExtension("." + ext); t != "" {
		if i := strings.Index(t, ";"); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return defaultContentType
}
