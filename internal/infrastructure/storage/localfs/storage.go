// Package localfs serves source documents from a directory tree rooted
// at a base path. Locations are relative slash paths; an optional
// prefix allowlist restricts which subtrees may be ingested.
package localfs

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/docindex/internal/core/domain"
)

type Storage struct {
	basePath        string
	allowedPrefixes []string
}

func New(basePath string, allowedPrefixes []string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	prefixes := make([]string, 0, len(allowedPrefixes))
	for _, p := range allowedPrefixes {
		p = strings.Trim(strings.TrimSpace(p), "/")
		if p != "" {
			prefixes = append(prefixes, p+"/")
		}
	}
	return &Storage{basePath: basePath, allowedPrefixes: prefixes}, nil
}

// Allowed rejects absolute paths and traversal, then checks the prefix
// allowlist. An empty allowlist admits every relative location.
func (s *Storage) Allowed(location string) bool {
	location = strings.TrimSpace(location)
	if location == "" || strings.HasPrefix(location, "/") {
		return false
	}
	cleaned := path.Clean(location)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return false
	}
	if len(s.allowedPrefixes) == 0 {
		return true
	}
	for _, prefix := range s.allowedPrefixes {
		if strings.HasPrefix(cleaned, prefix) {
			return true
		}
	}
	return false
}

func (s *Storage) Fetch(_ context.Context, location string) ([]byte, error) {
	if !s.Allowed(location) {
		return nil, domain.WrapError(domain.ErrValidation, "fetch blob", fmt.Errorf("location %q not allowed", location))
	}
	data, err := os.ReadFile(s.resolve(location))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.WrapError(domain.ErrNotFound, "fetch blob", fmt.Errorf("location %s", location))
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// Sidecar looks for "<blob>.meta.json" then "<blob>.meta.yaml" next to
// the blob. Absence is not an error; a present but malformed sidecar is.
func (s *Storage) Sidecar(_ context.Context, location string) (map[string]string, bool, error) {
	for _, suffix := range []string{".meta.json", ".meta.yaml"} {
		data, err := os.ReadFile(s.resolve(location) + suffix)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, false, fmt.Errorf("read sidecar: %w", err)
		}

		tags := map[string]string{}
		// yaml.Unmarshal also accepts JSON, so one decoder covers both.
		if err := yaml.Unmarshal(data, &tags); err != nil {
			return nil, false, domain.WrapError(domain.ErrParse, "parse sidecar",
				fmt.Errorf("%s%s: %w", location, suffix, err))
		}
		return tags, true, nil
	}
	return nil, false, nil
}

func (s *Storage) resolve(location string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(path.Clean(location)))
}
