package terminology

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/oncore/oncore/pkg/clinical"
)

const closureCacheSize = 4096

// Service resolves codes against the loaded codesystems and memoizes
// the transitive descendant closure, which cohort rule compilation
// queries repeatedly for the same handful of ancestor codes.
type Service struct {
	repo    Repository
	closure *lru.Cache[string, []string]
}

func NewService(repo Repository) (*Service, error) {
	cache, err := lru.New[string, []string](closureCacheSize)
	if err != nil {
		return nil, fmt.Errorf("init closure cache: %w", err)
	}
	return &Service{repo: repo, closure: cache}, nil
}

func (s *Service) Lookup(ctx context.Context, system, code string) (*clinical.CodedConcept, error) {
	c, err := s.repo.Get(ctx, system, code)
	if err != nil {
		return nil, err
	}
	coded := c.Coded()
	return &coded, nil
}

// DescendantsOf returns the code itself plus every transitive descendant
// in the given system.
func (s *Service) DescendantsOf(ctx context.Context, system, code string) ([]string, error) {
	key := system + "|" + code
	if codes, ok := s.closure.Get(key); ok {
		return codes, nil
	}
	codes, err := s.repo.Descendants(ctx, system, code)
	if err != nil {
		return nil, err
	}
	s.closure.Add(key, codes)
	return codes, nil
}

// GroupOf resolves the three-character topography group of an ICD-O-3
// topography code, e.g. C50.2 maps to the C50 group concept.
func (s *Service) GroupOf(ctx context.Context, system, code string) (*clinical.CodedConcept, error) {
	prefix := code
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	c, err := s.repo.Group(ctx, system, prefix)
	if err != nil {
		return nil, err
	}
	coded := c.Coded()
	return &coded, nil
}
