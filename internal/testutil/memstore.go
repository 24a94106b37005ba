package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dalemusser/prephub/internal/app/store/revisionitems"
	"github.com/dalemusser/prephub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// failures lets tests make a named store operation fail.
type failures struct {
	mu   sync.Mutex
	errs map[string]error
}

// FailOn makes every call to op return err until cleared with a nil err.
func (f *failures) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = make(map[string]error)
	}
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

func (f *failures) check(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[op]
}

// MemItems is an in-memory revision item store with the same uniqueness
// and ordering rules as revisionitems.Store.
type MemItems struct {
	failures

	mu    sync.Mutex
	items map[primitive.ObjectID]models.RevisionItem
}

// NewMemItems creates an empty MemItems.
func NewMemItems() *MemItems {
	return &MemItems{items: make(map[primitive.ObjectID]models.RevisionItem)}
}

// Put stores it as-is (after normalization), assigning an ID if missing.
// Use it to seed states the public operations cannot reach directly.
func (m *MemItems) Put(it models.RevisionItem) models.RevisionItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	it = revisionitems.Normalize(it)
	if it.ID.IsZero() {
		it.ID = primitive.NewObjectID()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}
	m.items[it.ID] = it
	return it
}

// All returns every stored item in listing order.
func (m *MemItems) All() []models.RevisionItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.RevisionItem, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	revisionitems.SortItems(out)
	return out
}

func (m *MemItems) findKey(userID, key string, b models.Bucket) (models.RevisionItem, bool) {
	for _, it := range m.items {
		if it.UserID == userID && it.QuestionKey == key && it.Bucket == b {
			return it, true
		}
	}
	return models.RevisionItem{}, false
}

// UpsertIfAbsent implements revision.ItemStore.
func (m *MemItems) UpsertIfAbsent(_ context.Context, it models.RevisionItem) (models.RevisionItem, bool, error) {
	if err := m.check("UpsertIfAbsent"); err != nil {
		return models.RevisionItem{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	it = revisionitems.Normalize(it)
	if existing, ok := m.findKey(it.UserID, it.QuestionKey, it.Bucket); ok {
		return existing, false, nil
	}
	now := time.Now().UTC()
	it.ID = primitive.NewObjectID()
	if it.CreatedAt.IsZero() {
		it.CreatedAt = now
	}
	it.UpdatedAt = &now
	m.items[it.ID] = it
	return it, true, nil
}

// FindByID implements revision.ItemStore.
func (m *MemItems) FindByID(_ context.Context, userID string, id primitive.ObjectID) (models.RevisionItem, error) {
	if err := m.check("FindByID"); err != nil {
		return models.RevisionItem{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok || it.UserID != userID {
		return models.RevisionItem{}, revisionitems.ErrNotFound
	}
	return it, nil
}

// FindByKey implements revision.ItemStore.
func (m *MemItems) FindByKey(_ context.Context, userID, questionKey string, b models.Bucket) (models.RevisionItem, error) {
	if err := m.check("FindByKey"); err != nil {
		return models.RevisionItem{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.findKey(userID, questionKey, b)
	if !ok {
		return models.RevisionItem{}, revisionitems.ErrNotFound
	}
	return it, nil
}

// List implements revision.ItemStore.
func (m *MemItems) List(_ context.Context, f revisionitems.Filter) ([]models.RevisionItem, error) {
	if err := m.check("List"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(f), nil
}

func (m *MemItems) list(f revisionitems.Filter) []models.RevisionItem {
	var out []models.RevisionItem
	for _, it := range m.items {
		if f.Matches(it) {
			out = append(out, it)
		}
	}
	revisionitems.SortItems(out)
	return out
}

// BulkAdvance implements revision.ItemStore, skipping items whose move
// would collide with an existing record.
func (m *MemItems) BulkAdvance(_ context.Context, f revisionitems.Filter, b models.Bucket, dueAt time.Time) (int64, error) {
	if err := m.check("BulkAdvance"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := revisionitems.Changes{BucketDueAt: dueAt}
	if b != "" && b != f.Bucket {
		ch.Bucket = b
	}
	now := time.Now().UTC()

	var n int64
	for _, it := range m.list(f) {
		if ch.Bucket != "" {
			if _, taken := m.findKey(it.UserID, it.QuestionKey, ch.Bucket); taken {
				continue
			}
		}
		m.items[it.ID] = ch.Apply(it, now)
		n++
	}
	return n, nil
}

// Update implements revision.ItemStore.
func (m *MemItems) Update(_ context.Context, userID string, id primitive.ObjectID, ch revisionitems.Changes) (models.RevisionItem, error) {
	if err := m.check("Update"); err != nil {
		return models.RevisionItem{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[id]
	if !ok || it.UserID != userID {
		return models.RevisionItem{}, revisionitems.ErrNotFound
	}
	if ch.Bucket != "" && ch.Bucket != it.Bucket {
		if _, taken := m.findKey(userID, it.QuestionKey, ch.Bucket); taken {
			return models.RevisionItem{}, revisionitems.ErrDuplicate
		}
	}
	it = ch.Apply(it, time.Now().UTC())
	m.items[id] = it
	return it, nil
}

// DeleteAndReturn implements revision.ItemStore.
func (m *MemItems) DeleteAndReturn(_ context.Context, userID string, id primitive.ObjectID) (models.RevisionItem, error) {
	if err := m.check("DeleteAndReturn"); err != nil {
		return models.RevisionItem{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok || it.UserID != userID {
		return models.RevisionItem{}, revisionitems.ErrNotFound
	}
	delete(m.items, id)
	return it, nil
}

// MemArchive is an in-memory monthly archive store with set semantics.
type MemArchive struct {
	failures

	mu   sync.Mutex
	docs map[string]*models.MonthlyArchive
}

// NewMemArchive creates an empty MemArchive.
func NewMemArchive() *MemArchive {
	return &MemArchive{docs: make(map[string]*models.MonthlyArchive)}
}

func archiveKey(userID, monthKey string) string { return userID + "|" + monthKey }

// AddItems implements revision.ArchiveStore.
func (a *MemArchive) AddItems(_ context.Context, userID, monthKey string, items []models.ArchivedItem) ([]string, error) {
	if err := a.check("AddItems"); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	doc, ok := a.docs[archiveKey(userID, monthKey)]
	if !ok {
		now := time.Now().UTC()
		doc = &models.MonthlyArchive{
			ID:        primitive.NewObjectID(),
			UserID:    userID,
			MonthKey:  monthKey,
			Items:     []models.ArchivedItem{},
			CreatedAt: now,
		}
		a.docs[archiveKey(userID, monthKey)] = doc
	}

	var added []string
	for _, it := range items {
		if it.ItemKey == "" || hasItem(doc.Items, it.ItemKey) {
			continue
		}
		doc.Items = append(doc.Items, it)
		added = append(added, it.ItemKey)
	}
	return added, nil
}

func hasItem(items []models.ArchivedItem, key string) bool {
	for _, it := range items {
		if it.ItemKey == key {
			return true
		}
	}
	return false
}

// RemoveItems implements revision.ArchiveStore.
func (a *MemArchive) RemoveItems(_ context.Context, userID, monthKey string, itemKeys []string) error {
	if err := a.check("RemoveItems"); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	doc, ok := a.docs[archiveKey(userID, monthKey)]
	if !ok {
		return nil
	}
	drop := make(map[string]bool, len(itemKeys))
	for _, k := range itemKeys {
		drop[k] = true
	}
	kept := doc.Items[:0]
	for _, it := range doc.Items {
		if !drop[it.ItemKey] {
			kept = append(kept, it)
		}
	}
	doc.Items = kept
	return nil
}

// Get implements revision.ArchiveStore.
func (a *MemArchive) Get(_ context.Context, userID, monthKey string) (models.MonthlyArchive, error) {
	if err := a.check("Get"); err != nil {
		return models.MonthlyArchive{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	doc, ok := a.docs[archiveKey(userID, monthKey)]
	if !ok {
		return models.MonthlyArchive{UserID: userID, MonthKey: monthKey, Items: []models.ArchivedItem{}}, nil
	}
	cp := *doc
	cp.Items = append([]models.ArchivedItem(nil), doc.Items...)
	return cp, nil
}

// ListByUser implements revision.ArchiveStore.
func (a *MemArchive) ListByUser(_ context.Context, userID string) ([]models.MonthlyArchive, error) {
	if err := a.check("ListByUser"); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []models.MonthlyArchive
	for _, doc := range a.docs {
		if doc.UserID != userID {
			continue
		}
		cp := *doc
		cp.Items = append([]models.ArchivedItem(nil), doc.Items...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MonthKey > out[j].MonthKey })
	return out, nil
}

// MemDismissals is an in-memory dismissal store keeping the latest
// dismissal per (user, question).
type MemDismissals struct {
	failures

	mu   sync.Mutex
	docs map[string]models.Dismissal
}

// NewMemDismissals creates an empty MemDismissals.
func NewMemDismissals() *MemDismissals {
	return &MemDismissals{docs: make(map[string]models.Dismissal)}
}

// Record implements revision.DismissalStore.
func (d *MemDismissals) Record(_ context.Context, userID, questionKey string, reason models.DismissalReason, at time.Time) error {
	if err := d.check("Record"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	k := archiveKey(userID, questionKey)
	prev, ok := d.docs[k]
	if !ok {
		prev = models.Dismissal{ID: primitive.NewObjectID(), UserID: userID, QuestionKey: questionKey}
	}
	prev.Reason = reason
	if at.After(prev.At) {
		prev.At = at.UTC()
	}
	d.docs[k] = prev
	return nil
}

// ListSince implements revision.DismissalStore.
func (d *MemDismissals) ListSince(_ context.Context, userID string, since time.Time) ([]models.Dismissal, error) {
	if err := d.check("ListSince"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []models.Dismissal
	for _, doc := range d.docs {
		if doc.UserID == userID && !doc.At.Before(since) {
			out = append(out, doc)
		}
	}
	return out, nil
}
