package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"regexp"
	"strings"

	apperrors "github.com/leeforge/thumbnail/errors"
	"github.com/leeforge/thumbnail/media/sizespec"
	"github.com/leeforge/thumbnail/utils"
)

const (
	imagesDir     = "images"
	baseToken     = "i"
	watermarkMark = "w"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+(/[A-Za-z0-9_\-]+)*$`)

// NormalizeID strips every "." from raw and checks the result against the
// identifier allow-list: slash-separated segments of letters, digits, "_"
// and "-".
func NormalizeID(raw string) (string, error) {
	id := strings.ReplaceAll(raw, ".", "")
	if id == "" {
		return "", apperrors.NewIllegalIdentifier(raw, "identifier is empty")
	}
	if !identifierPattern.MatchString(id) {
		return "", apperrors.NewIllegalIdentifier(raw, "identifier must be slash separated segments of [A-Za-z0-9_-]")
	}
	return id, nil
}

// KeyBuilder derives blob paths for cache entries:
//
//	{cache_path}/images/{id}/i[-{size}][-w][-f{fingerprint}].{ext}
type KeyBuilder struct {
	root        string
	extension   string
	fingerprint string
}

// NewKeyBuilder creates a builder rooted at cachePath whose original entries
// use extension.
func NewKeyBuilder(cachePath, extension string) *KeyBuilder {
	return &KeyBuilder{
		root:      strings.Trim(cachePath, "/"),
		extension: utils.FoldExtension(extension),
	}
}

// WithFingerprint returns a copy whose derived paths carry an 8 hex digit
// digest of parts, so changing watermark or quality settings produces new
// entries instead of serving stale ones.
func (b *KeyBuilder) WithFingerprint(parts ...string) *KeyBuilder {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	cp := *b
	cp.fingerprint = hex.EncodeToString(sum[:4])
	return &cp
}

// Extension is the extension used for original entries.
func (b *KeyBuilder) Extension() string {
	return b.extension
}

// Fingerprint returns the derived-entry fingerprint, empty when disabled.
func (b *KeyBuilder) Fingerprint() string {
	return b.fingerprint
}

// BuildPath returns the entry path for id using the builder's extension.
// With includeParams false it is the original entry; otherwise the size and
// watermark tokens are appended.
func (b *KeyBuilder) BuildPath(id string, includeParams bool, size *sizespec.Spec, watermarked bool) string {
	return b.build(id, includeParams, size, watermarked, b.extension)
}

// OriginalPath returns the original-tier entry for id.
func (b *KeyBuilder) OriginalPath(id string) string {
	return b.build(id, false, nil, false, b.extension)
}

// DerivedPath returns the derived-tier entry for id encoded as ext.
func (b *KeyBuilder) DerivedPath(id string, size *sizespec.Spec, watermarked bool, ext string) string {
	ext = utils.FoldExtension(ext)
	if ext == "" {
		ext = b.extension
	}
	return b.build(id, true, size, watermarked, ext)
}

func (b *KeyBuilder) build(id string, includeParams bool, size *sizespec.Spec, watermarked bool, ext string) string {
	tokens := []string{baseToken}
	if includeParams {
		if size != nil {
			tokens = append(tokens, size.Raw)
		}
		if watermarked {
			tokens = append(tokens, watermarkMark)
		}
		if b.fingerprint != "" {
			tokens = append(tokens, "f"+b.fingerprint)
		}
	}

	name := strings.Join(tokens, "-") + "." + ext
	return path.Join(b.root, imagesDir, id, name)
}
