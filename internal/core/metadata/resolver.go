// Package metadata merges caller-supplied tags, optional sidecar metadata,
// and path-derived tags into one canonical tag set, and derives a stable
// content-addressed document identity.
package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/kirillkom/docindex/internal/core/domain"
)

var requiredTags = []string{domain.TagTenant, domain.TagDataset}

var validConfidentiality = map[string]bool{
	"public":       true,
	"internal":     true,
	"confidential": true,
}

// Sources enumerates every tag origin in precedence order, highest first:
// request, sidecar, path, defaults. A fixed set rather than a free-form
// dictionary overlay keeps the merge typed and testable.
type Sources struct {
	Request        map[string]string
	Sidecar        map[string]string
	SidecarPresent bool
	Path           string
	Defaults       map[string]string
}

var pathPattern = regexp.MustCompile(`^/?([^/]+)/([^/]+)/`)

// InferFromPath extracts tenant and dataset from the fixed two-segment
// location pattern "/{tenant}/{dataset}/...". Returns an empty map when
// the location does not match.
func InferFromPath(location string) map[string]string {
	m := pathPattern.FindStringSubmatch(location)
	if m == nil {
		return map[string]string{}
	}
	return map[string]string{
		domain.TagTenant:  strings.ToLower(strings.TrimSpace(m[1])),
		domain.TagDataset: strings.ToLower(strings.TrimSpace(m[2])),
	}
}

// Resolve merges all sources and validates the result. Pure over its
// inputs; the sidecar lookup happens before this call.
func Resolve(src Sources) (map[string]string, error) {
	merged := map[string]string{}
	for _, layer := range []map[string]string{
		src.Defaults,
		InferFromPath(src.Path),
		src.Sidecar,
		src.Request,
	} {
		for k, v := range layer {
			merged[k] = v
		}
	}

	var missing []string
	for _, tag := range requiredTags {
		if strings.TrimSpace(merged[tag]) == "" {
			missing = append(missing, tag)
		}
	}
	if len(missing) > 0 {
		return nil, domain.WrapError(domain.ErrValidation, "resolve metadata",
			fmt.Errorf("required tags missing: %s", strings.Join(missing, ", ")))
	}

	merged[domain.TagTenant] = strings.ToLower(strings.TrimSpace(merged[domain.TagTenant]))
	merged[domain.TagDataset] = strings.ToLower(strings.TrimSpace(merged[domain.TagDataset]))

	if c, ok := merged["confidentiality"]; ok && !validConfidentiality[c] {
		return nil, domain.WrapError(domain.ErrValidation, "resolve metadata",
			fmt.Errorf("invalid confidentiality: %q", c))
	}
	return merged, nil
}

// Derive computes the document identity from location and content.
// When explicitDocID is empty the id is "{filename-stem}-{sha256[:8]}",
// stable for identical (filename, bytes).
func Derive(location string, content []byte, explicitDocID string) (docID, sha string) {
	sum := sha256.Sum256(content)
	sha = hex.EncodeToString(sum[:])
	if explicitDocID != "" {
		return explicitDocID, sha
	}
	stem := strings.TrimSuffix(path.Base(location), path.Ext(location))
	return stem + "-" + sha[:8], sha
}

// Identity assembles the full document identity carried into every chunk.
func Identity(location string, content []byte, explicitDocID string, tags map[string]string, now time.Time) (domain.Identity, error) {
	if len(content) == 0 && location == "" {
		return domain.Identity{}, domain.WrapError(domain.ErrValidation, "derive identity", errors.New("empty location"))
	}
	docID, sha := Derive(location, content, explicitDocID)
	return domain.Identity{
		DocID:      docID,
		SHA256:     sha,
		Tags:       tags,
		Filename:   path.Base(location),
		FileType:   strings.TrimPrefix(strings.ToLower(path.Ext(location)), "."),
		FileSize:   len(content),
		IngestedAt: now.UTC(),
	}, nil
}
