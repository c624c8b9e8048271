package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"pecuny/internal/cache"
	"pecuny/internal/core"
	"pecuny/internal/storage"
)

const sectionsKey = "sections"

// TaxonomyService resolves section and category labels. Both lists are
// cached since the importer looks them up once per row.
type TaxonomyService struct {
	store      storage.Store
	sections   *cache.LRUCache[[]core.Section]
	categories *cache.LRUCache[[]core.Category]
	group      singleflight.Group
}

// NewTaxonomyService caches lookups for ttl. A non-positive ttl keeps
// entries for one minute.
func NewTaxonomyService(store storage.Store, ttl time.Duration) *TaxonomyService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &TaxonomyService{
		store:      store,
		sections:   cache.NewLRUCache[[]core.Section](1, ttl),
		categories: cache.NewLRUCache[[]core.Category](64, ttl),
	}
}

// Caches exposes the underlying caches so a cache.Manager can clean them.
func (s *TaxonomyService) Caches() []cache.Cleaner {
	return []cache.Cleaner{s.sections, s.categories}
}

// Invalidate drops every cached list.
func (s *TaxonomyService) Invalidate() {
	s.sections.Purge()
	s.categories.Purge()
}

func (s *TaxonomyService) ListSections(ctx context.Context) ([]core.Section, error) {
	if sections, ok := s.sections.Get(sectionsKey); ok {
		return sections, nil
	}
	v, err, _ := s.group.Do(sectionsKey, func() (any, error) {
		var sections []core.Section
		err := s.store.InTx(ctx, func(tx storage.Tx) error {
			var err error
			sections, err = tx.ListSections(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
		s.sections.Set(sectionsKey, sections)
		return sections, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return v.([]core.Section), nil
}

// ListCategories returns the categories of a section that user may use.
func (s *TaxonomyService) ListCategories(ctx context.Context, user core.User, sectionID int64) ([]core.Category, error) {
	all, err := s.sectionCategories(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	out := make([]core.Category, 0, len(all))
	for _, c := range all {
		if c.VisibleTo(user) {
			out = append(out, c)
		}
	}
	return out, nil
}

// ResolveSection finds a section by label, ignoring case and surrounding
// spaces. The lowest id wins when labels collide.
func (s *TaxonomyService) ResolveSection(ctx context.Context, label string) (core.Section, error) {
	sections, err := s.ListSections(ctx)
	if err != nil {
		return core.Section{}, err
	}
	want := strings.TrimSpace(label)
	for _, sec := range sections {
		if strings.EqualFold(sec.Label, want) {
			return sec, nil
		}
	}
	return core.Section{}, &core.ReferenceError{Kind: "Section", Label: label}
}

// ResolveCategory finds a category of the section by label among those
// visible to user.
func (s *TaxonomyService) ResolveCategory(ctx context.Context, user core.User, sectionID int64, label string) (core.Category, error) {
	categories, err := s.ListCategories(ctx, user, sectionID)
	if err != nil {
		return core.Category{}, err
	}
	want := strings.TrimSpace(label)
	for _, c := range categories {
		if strings.EqualFold(c.Label, want) {
			return c, nil
		}
	}
	return core.Category{}, &core.ReferenceError{Kind: "Category", Label: label}
}

func (s *TaxonomyService) sectionCategories(ctx context.Context, sectionID int64) ([]core.Category, error) {
	key := "section:" + strconv.FormatInt(sectionID, 10)
	if categories, ok := s.categories.Get(key); ok {
		return categories, nil
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		var categories []core.Category
		err := s.store.InTx(ctx, func(tx storage.Tx) error {
			var err error
			categories, err = tx.ListCategories(ctx, sectionID)
			return err
		})
		if err != nil {
			return nil, err
		}
		s.categories.Set(key, categories)
		return categories, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list categories of section %d: %w", sectionID, err)
	}
	return v.([]core.Category), nil
}
