// Package store provides the bordereau document stores: an in-memory
// implementation for unit tests and a PostgreSQL implementation for
// production. Both satisfy ports.Store, including the reentrant transaction
// contract.
package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"wastetrack/internal/bordereau/models"
	"wastetrack/pkg/platform/sentinel"
)

type memTxKey struct{}

// MemoryStore is an in-memory ports.Store. RunInTx serializes on one mutex
// and snapshots all state up front, so a failing transaction rolls back and
// concurrent transactions observe committed state only, the same semantics
// tests rely on against PostgreSQL.
type MemoryStore struct {
	mu          sync.Mutex
	forms       map[uuid.UUID]*models.Form
	byReadable  map[string]uuid.UUID
	statusLogs  map[uuid.UUID][]models.StatusLog
	groupements []models.Groupement
	revisions   map[uuid.UUID]*models.RevisionRequest
	approvals   map[uuid.UUID]*models.RevisionApproval
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		forms:      make(map[uuid.UUID]*models.Form),
		byReadable: make(map[string]uuid.UUID),
		statusLogs: make(map[uuid.UUID][]models.StatusLog),
		revisions:  make(map[uuid.UUID]*models.RevisionRequest),
		approvals:  make(map[uuid.UUID]*models.RevisionApproval),
	}
}

func inMemTx(ctx context.Context) bool {
	_, ok := ctx.Value(memTxKey{}).(bool)
	return ok
}

// lock acquires the store mutex unless the context already carries an open
// transaction, which holds it for its whole extent.
func (s *MemoryStore) lock(ctx context.Context) func() {
	if inMemTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// RunInTx executes fn atomically. A nested call joins the open transaction.
func (s *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inMemTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	forms       map[uuid.UUID]*models.Form
	byReadable  map[string]uuid.UUID
	statusLogs  map[uuid.UUID][]models.StatusLog
	groupements []models.Groupement
	revisions   map[uuid.UUID]*models.RevisionRequest
	approvals   map[uuid.UUID]*models.RevisionApproval
}

func (s *MemoryStore) snapshot() memSnapshot {
	snap := memSnapshot{
		forms:       make(map[uuid.UUID]*models.Form, len(s.forms)),
		byReadable:  make(map[string]uuid.UUID, len(s.byReadable)),
		statusLogs:  make(map[uuid.UUID][]models.StatusLog, len(s.statusLogs)),
		groupements: append([]models.Groupement(nil), s.groupements...),
		revisions:   make(map[uuid.UUID]*models.RevisionRequest, len(s.revisions)),
		approvals:   make(map[uuid.UUID]*models.RevisionApproval, len(s.approvals)),
	}
	for id, f := range s.forms {
		snap.forms[id] = f.Clone()
	}
	for readable, id := range s.byReadable {
		snap.byReadable[readable] = id
	}
	for id, logs := range s.statusLogs {
		snap.statusLogs[id] = append([]models.StatusLog(nil), logs...)
	}
	for id, r := range s.revisions {
		cp := *r
		cp.Approvals = append([]models.RevisionApproval(nil), r.Approvals...)
		snap.revisions[id] = &cp
	}
	for id, a := range s.approvals {
		cp := *a
		snap.approvals[id] = &cp
	}
	return snap
}

func (s *MemoryStore) restore(snap memSnapshot) {
	s.forms = snap.forms
	s.byReadable = snap.byReadable
	s.statusLogs = snap.statusLogs
	s.groupements = snap.groupements
	s.revisions = snap.revisions
	s.approvals = snap.approvals
}

func (s *MemoryStore) CreateForm(ctx context.Context, f *models.Form) error {
	defer s.lock(ctx)()
	if _, exists := s.forms[f.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byReadable[f.ReadableID]; exists {
		return sentinel.ErrConflict
	}
	cp := f.Clone()
	cp.Version = 1
	s.forms[f.ID] = cp
	s.byReadable[f.ReadableID] = f.ID
	f.Version = cp.Version
	return nil
}

func (s *MemoryStore) FindForm(ctx context.Context, id uuid.UUID) (*models.Form, error) {
	defer s.lock(ctx)()
	return s.findLocked(id)
}

func (s *MemoryStore) FindFormByReadableID(ctx context.Context, readableID string) (*models.Form, error) {
	defer s.lock(ctx)()
	id, ok := s.byReadable[readableID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.findLocked(id)
}

// FindFormForUpdate behaves like FindForm; the memory store serializes whole
// transactions on one mutex, so row-level locking is implicit.
func (s *MemoryStore) FindFormForUpdate(ctx context.Context, id uuid.UUID) (*models.Form, error) {
	defer s.lock(ctx)()
	return s.findLocked(id)
}

func (s *MemoryStore) findLocked(id uuid.UUID) (*models.Form, error) {
	f, ok := s.forms[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return f.Clone(), nil
}

func (s *MemoryStore) UpdateForm(ctx context.Context, f *models.Form) error {
	defer s.lock(ctx)()
	stored, ok := s.forms[f.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != f.Version {
		return sentinel.ErrConflict
	}
	cp := f.Clone()
	cp.Version++
	// A nil detail means "unchanged", never "delete".
	if cp.TempStorage == nil {
		cp.TempStorage = stored.TempStorage
	}
	s.forms[f.ID] = cp
	f.Version = cp.Version
	return nil
}

func (s *MemoryStore) DeleteForm(ctx context.Context, id uuid.UUID) error {
	defer s.lock(ctx)()
	f, ok := s.forms[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	f.IsDeleted = true
	f.Version++
	return nil
}

func (s *MemoryStore) UpdateTempStorage(ctx context.Context, d *models.TempStorageDetail) error {
	defer s.lock(ctx)()
	f, ok := s.forms[d.FormID]
	if !ok {
		return sentinel.ErrNotFound
	}
	cp := *d
	if d.TemporaryStorerQuantityReceived != nil {
		q := *d.TemporaryStorerQuantityReceived
		cp.TemporaryStorerQuantityReceived = &q
	}
	if d.TemporaryStorerReceivedAt != nil {
		t := *d.TemporaryStorerReceivedAt
		cp.TemporaryStorerReceivedAt = &t
	}
	f.TempStorage = &cp
	return nil
}

func (s *MemoryStore) AppendStatusLog(ctx context.Context, entry *models.StatusLog) error {
	defer s.lock(ctx)()
	s.statusLogs[entry.FormID] = append(s.statusLogs[entry.FormID], *entry)
	return nil
}

func (s *MemoryStore) ListStatusLogs(ctx context.Context, formID uuid.UUID) ([]models.StatusLog, error) {
	defer s.lock(ctx)()
	return append([]models.StatusLog(nil), s.statusLogs[formID]...), nil
}

func (s *MemoryStore) GroupementsByNextForm(ctx context.Context, nextFormID uuid.UUID) ([]models.Groupement, error) {
	defer s.lock(ctx)()
	var out []models.Groupement
	for _, g := range s.groupements {
		if g.NextFormID == nextFormID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *MemoryStore) GroupementsByInitialForm(ctx context.Context, initialFormID uuid.UUID) ([]models.Groupement, error) {
	defer s.lock(ctx)()
	var out []models.Groupement
	for _, g := range s.groupements {
		if g.InitialFormID == initialFormID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpsertGroupement(ctx context.Context, link *models.Groupement) error {
	defer s.lock(ctx)()
	for i := range s.groupements {
		if s.groupements[i].InitialFormID == link.InitialFormID &&
			s.groupements[i].NextFormID == link.NextFormID {
			s.groupements[i].Quantity = link.Quantity
			return nil
		}
	}
	s.groupements = append(s.groupements, *link)
	return nil
}

func (s *MemoryStore) DeleteGroupement(ctx context.Context, initialFormID, nextFormID uuid.UUID) error {
	defer s.lock(ctx)()
	for i := range s.groupements {
		if s.groupements[i].InitialFormID == initialFormID &&
			s.groupements[i].NextFormID == nextFormID {
			s.groupements = append(s.groupements[:i], s.groupements[i+1:]...)
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func (s *MemoryStore) CreateRevisionRequest(ctx context.Context, r *models.RevisionRequest) error {
	defer s.lock(ctx)()
	if _, exists := s.revisions[r.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *r
	cp.Approvals = append([]models.RevisionApproval(nil), r.Approvals...)
	s.revisions[r.ID] = &cp
	for i := range cp.Approvals {
		a := cp.Approvals[i]
		s.approvals[a.ID] = &a
	}
	return nil
}

func (s *MemoryStore) FindRevisionRequest(ctx context.Context, id uuid.UUID) (*models.RevisionRequest, error) {
	defer s.lock(ctx)()
	return s.findRevisionLocked(id)
}

func (s *MemoryStore) FindRevisionRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.RevisionRequest, error) {
	defer s.lock(ctx)()
	return s.findRevisionLocked(id)
}

func (s *MemoryStore) findRevisionLocked(id uuid.UUID) (*models.RevisionRequest, error) {
	r, ok := s.revisions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *r
	cp.Approvals = nil
	for _, a := range s.approvals {
		if a.RevisionRequestID == id {
			cp.Approvals = append(cp.Approvals, *a)
		}
	}
	return &cp, nil
}

func (s *MemoryStore) CountPendingRevisionRequests(ctx context.Context, formID uuid.UUID) (int, error) {
	defer s.lock(ctx)()
	n := 0
	for _, r := range s.revisions {
		if r.FormID == formID && r.Status == models.RevisionRequestPending {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) UpdateRevisionRequestStatus(ctx context.Context, id uuid.UUID, status models.RevisionRequestStatus) error {
	defer s.lock(ctx)()
	r, ok := s.revisions[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	r.Status = status
	return nil
}

func (s *MemoryStore) DeleteRevisionRequest(ctx context.Context, id uuid.UUID) error {
	defer s.lock(ctx)()
	if _, ok := s.revisions[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.revisions, id)
	for aid, a := range s.approvals {
		if a.RevisionRequestID == id {
			delete(s.approvals, aid)
		}
	}
	return nil
}

func (s *MemoryStore) FindApproval(ctx context.Context, id uuid.UUID) (*models.RevisionApproval, error) {
	defer s.lock(ctx)()
	a, ok := s.approvals[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) UpdateApprovalStatus(ctx context.Context, id uuid.UUID, status models.RevisionApprovalStatus, comment string) error {
	defer s.lock(ctx)()
	a, ok := s.approvals[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	a.Status = status
	a.Comment = comment
	return nil
}

func (s *MemoryStore) CountPendingApprovals(ctx context.Context, revisionRequestID uuid.UUID) (int, error) {
	defer s.lock(ctx)()
	n := 0
	for _, a := range s.approvals {
		if a.RevisionRequestID == revisionRequestID && a.Status == models.RevisionApprovalPending {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CancelPendingApprovals(ctx context.Context, revisionRequestID uuid.UUID) error {
	defer s.lock(ctx)()
	for _, a := range s.approvals {
		if a.RevisionRequestID == revisionRequestID && a.Status == models.RevisionApprovalPending {
			a.Status = models.RevisionApprovalCanceled
		}
	}
	return nil
}
