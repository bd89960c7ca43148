// Package service contains the business logic that composes collections,
// the history ledger, and the link issuer behind the HTTP surface.
package service

import (
	"context"
	"fmt"

	"github.com/badrabdoph/sitekeeper/internal/common"
	"github.com/badrabdoph/sitekeeper/internal/content"
	"github.com/badrabdoph/sitekeeper/internal/history"
	"github.com/badrabdoph/sitekeeper/internal/logging"
	"github.com/badrabdoph/sitekeeper/internal/store"
)

// PackagesService mediates every package mutation so each one lands in the
// history ledger: post-mutation snapshots for create/update, the
// pre-deletion snapshot for delete.
type PackagesService struct {
	packages *store.Collection[content.Package, *content.Package]
	ledger   *history.Ledger
	log      logging.Logger
}

func NewPackagesService(packages *store.Collection[content.Package, *content.Package], ledger *history.Ledger, log logging.Logger) *PackagesService {
	return &PackagesService{
		packages: packages,
		ledger:   ledger,
		log:      log.With("module", "packages"),
	}
}

func (s *PackagesService) List(ctx context.Context) []*content.Package {
	return s.packages.List(ctx)
}

func (s *PackagesService) Get(ctx context.Context, id int) *content.Package {
	return s.packages.GetByID(ctx, id)
}

func (s *PackagesService) Create(ctx context.Context, input *content.Package) (*content.Package, error) {
	doc, err := s.packages.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	if _, err := s.ledger.Record(ctx, history.ActionCreate, *doc); err != nil {
		return nil, fmt.Errorf("record create: %w", err)
	}
	return doc, nil
}

func (s *PackagesService) Update(ctx context.Context, id int, mutate func(*content.Package)) (*content.Package, error) {
	doc, err := s.packages.Update(ctx, id, mutate)
	if err != nil {
		return nil, err
	}
	if _, err := s.ledger.Record(ctx, history.ActionUpdate, *doc); err != nil {
		return nil, fmt.Errorf("record update: %w", err)
	}
	return doc, nil
}

func (s *PackagesService) Delete(ctx context.Context, id int) (bool, error) {
	removed, err := s.packages.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if removed == nil {
		return false, nil
	}
	if _, err := s.ledger.Record(ctx, history.ActionDelete, *removed); err != nil {
		return true, fmt.Errorf("record delete: %w", err)
	}
	return true, nil
}

func (s *PackagesService) History(ctx context.Context) []history.Entry {
	return s.ledger.List(ctx)
}

func (s *PackagesService) ClearHistory(ctx context.Context) error {
	return s.ledger.Clear(ctx)
}

// Restore writes the snapshot of the given ledger entry back into the live
// collection, inserting it if its id is absent and overwriting in place if
// present, then records a restore entry. A restore is itself a
// ledger-producing mutation and can later be undone like any other.
func (s *PackagesService) Restore(ctx context.Context, entryID int64) (*content.Package, error) {
	entry, ok := s.ledger.GetByID(ctx, entryID)
	if !ok {
		return nil, common.ErrNotFound
	}

	snapshot := entry.Snapshot.Clone()
	doc, err := s.packages.Put(ctx, &snapshot)
	if err != nil {
		return nil, err
	}
	if _, err := s.ledger.Record(ctx, history.ActionRestore, *doc); err != nil {
		return nil, fmt.Errorf("record restore: %w", err)
	}
	s.log.Info(ctx, "package restored", "package_id", doc.ID, "entry_id", entryID)
	return doc, nil
}
