package service

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"sort"
	"time"

	"github.com/sakif/flashcards/internal/access"
	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/model"
	"github.com/sakif/flashcards/internal/repository"
)

// =========================================================================
// IN-MEMORY STORE
// =========================================================================
//
// memStore implements repository.Store on plain maps. WithinTx snapshots the
// maps and restores them when the callback fails, which is enough to check
// that services leave no partial writes behind.
//
// failOn injects an error into a named operation ("cards.update", ...) so
// tests can break a transaction halfway through.

type favKey struct{ user, collection int64 }

type memState struct {
	users       map[int64]model.User
	collections map[int64]model.Collection
	cards       map[int64]model.Card
	favorites   map[favKey]bool
	tokens      map[string]model.BlacklistedToken
	seq         int64
}

func (s *memState) clone() *memState {
	return &memState{
		users:       maps.Clone(s.users),
		collections: maps.Clone(s.collections),
		cards:       maps.Clone(s.cards),
		favorites:   maps.Clone(s.favorites),
		tokens:      maps.Clone(s.tokens),
		seq:         s.seq,
	}
}

func (s *memState) next() int64 {
	s.seq++
	return s.seq
}

type memStore struct {
	st     *memState
	faults map[string]error
	txs    int
}

var _ repository.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		st: &memState{
			users:       map[int64]model.User{},
			collections: map[int64]model.Collection{},
			cards:       map[int64]model.Card{},
			favorites:   map[favKey]bool{},
			tokens:      map[string]model.BlacklistedToken{},
		},
		faults: map[string]error{},
	}
}

func (m *memStore) failOn(op string, err error) { m.faults[op] = err }

func (m *memStore) fault(op string) error { return m.faults[op] }

func (m *memStore) Users() repository.UserRepository             { return memUsers{m} }
func (m *memStore) Collections() repository.CollectionRepository { return memCollections{m} }
func (m *memStore) Cards() repository.CardRepository             { return memCards{m} }
func (m *memStore) Favorites() repository.FavoriteRepository     { return memFavorites{m} }
func (m *memStore) Tokens() repository.TokenBlacklist            { return memTokens{m} }

func (m *memStore) WithinTx(_ context.Context, fn func(tx repository.Store) error) (err error) {
	m.txs++
	snapshot := m.st.clone()
	defer func() {
		if p := recover(); p != nil {
			m.st = snapshot
			panic(p)
		}
		if err != nil {
			m.st = snapshot
		}
	}()
	return fn(m)
}

func page[T any](items []T, opts repository.ListOptions) []T {
	if opts.Offset >= len(items) {
		return []T{}
	}
	items = items[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

// --- users ---

type memUsers struct{ m *memStore }

func (r memUsers) Create(_ context.Context, u *model.User) error {
	if err := r.m.fault("users.create"); err != nil {
		return err
	}
	for _, existing := range r.m.st.users {
		if existing.Email == u.Email {
			return apperror.Conflict("user", u.Email)
		}
	}
	u.ID = r.m.st.next()
	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now()
	}
	r.m.st.users[u.ID] = *u
	return nil
}

func (r memUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := r.m.st.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return &u, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range r.m.st.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

// --- collections ---

type memCollections struct{ m *memStore }

func (r memCollections) withOwner(c model.Collection) model.Collection {
	c.OwnerEmail = r.m.st.users[c.OwnerID].Email
	return c
}

func (r memCollections) sorted(keep func(model.Collection) bool) []model.Collection {
	out := []model.Collection{}
	for _, c := range r.m.st.collections {
		if keep(c) {
			out = append(out, r.withOwner(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r memCollections) Create(_ context.Context, c *model.Collection) error {
	if err := r.m.fault("collections.create"); err != nil {
		return err
	}
	if _, ok := r.m.st.users[c.OwnerID]; !ok {
		return apperror.ValidationFailed("owner", "owner does not exist")
	}
	c.ID = r.m.st.next()
	*c = r.withOwner(*c)
	r.m.st.collections[c.ID] = *c
	return nil
}

func (r memCollections) GetByID(_ context.Context, id int64) (*model.Collection, error) {
	c, ok := r.m.st.collections[id]
	if !ok {
		return nil, apperror.NotFound("collection", id)
	}
	c = r.withOwner(c)
	return &c, nil
}

func (r memCollections) GetVisible(ctx context.Context, id, userID int64) (*model.Collection, error) {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanReadCollection(userID, c) {
		return nil, apperror.NotFound("collection", id)
	}
	return c, nil
}

func (r memCollections) ListOwnedOrFavorited(_ context.Context, userID int64, opts repository.ListOptions) ([]model.Collection, error) {
	return page(r.sorted(func(c model.Collection) bool {
		return access.CanListCollection(userID, &c, r.m.st.favorites[favKey{userID, c.ID}])
	}), opts), nil
}

func (r memCollections) ListPublic(_ context.Context, excludeOwnerID int64, opts repository.ListOptions) ([]model.Collection, error) {
	return page(r.sorted(func(c model.Collection) bool {
		return c.IsPublic && c.OwnerID != excludeOwnerID
	}), opts), nil
}

func (r memCollections) Update(_ context.Context, c *model.Collection) error {
	if err := r.m.fault("collections.update"); err != nil {
		return err
	}
	if _, ok := r.m.st.collections[c.ID]; !ok {
		return apperror.NotFound("collection", c.ID)
	}
	r.m.st.collections[c.ID] = *c
	return nil
}

func (r memCollections) Delete(_ context.Context, id int64) error {
	if _, ok := r.m.st.collections[id]; !ok {
		return apperror.NotFound("collection", id)
	}
	delete(r.m.st.collections, id)
	for cid, card := range r.m.st.cards {
		if card.CollectionID == id {
			delete(r.m.st.cards, cid)
		}
	}
	for k := range r.m.st.favorites {
		if k.collection == id {
			delete(r.m.st.favorites, k)
		}
	}
	return nil
}

// --- cards ---

type memCards struct{ m *memStore }

func (r memCards) Create(_ context.Context, card *model.Card) error {
	if err := r.m.fault("cards.create"); err != nil {
		return err
	}
	if _, ok := r.m.st.collections[card.CollectionID]; !ok {
		return apperror.ValidationFailed("collection", "collection does not exist")
	}
	card.ID = r.m.st.next()
	r.m.st.cards[card.ID] = *card
	return nil
}

func (r memCards) CreateBatch(ctx context.Context, cards []model.Card) error {
	for i := range cards {
		if err := r.Create(ctx, &cards[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r memCards) GetByID(_ context.Context, id int64) (*model.Card, error) {
	c, ok := r.m.st.cards[id]
	if !ok {
		return nil, apperror.NotFound("card", id)
	}
	return &c, nil
}

func (r memCards) sorted(keep func(model.Card) bool) []model.Card {
	out := []model.Card{}
	for _, c := range r.m.st.cards {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r memCards) ListVisible(_ context.Context, userID, collectionID int64, opts repository.ListOptions) ([]model.Card, error) {
	return page(r.sorted(func(c model.Card) bool {
		col := r.m.st.collections[c.CollectionID]
		if collectionID != 0 && c.CollectionID != collectionID {
			return false
		}
		return col.IsPublic || col.OwnerID == userID
	}), opts), nil
}

func (r memCards) ListByCollection(_ context.Context, collectionID int64) ([]model.Card, error) {
	return r.sorted(func(c model.Card) bool { return c.CollectionID == collectionID }), nil
}

func (r memCards) Update(_ context.Context, card *model.Card) error {
	if err := r.m.fault("cards.update"); err != nil {
		return err
	}
	if _, ok := r.m.st.cards[card.ID]; !ok {
		return apperror.NotFound("card", card.ID)
	}
	r.m.st.cards[card.ID] = *card
	return nil
}

func (r memCards) UpdateBatch(ctx context.Context, cards []model.Card) error {
	for i := range cards {
		if err := r.Update(ctx, &cards[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r memCards) Delete(_ context.Context, id int64) error {
	if _, ok := r.m.st.cards[id]; !ok {
		return apperror.NotFound("card", id)
	}
	delete(r.m.st.cards, id)
	return nil
}

func (r memCards) DeleteBatch(_ context.Context, ids []int64) error {
	if err := r.m.fault("cards.delete"); err != nil {
		return err
	}
	for _, id := range ids {
		delete(r.m.st.cards, id)
	}
	return nil
}

// --- favorites ---

type memFavorites struct{ m *memStore }

func (r memFavorites) Add(_ context.Context, userID, collectionID int64) error {
	if _, ok := r.m.st.collections[collectionID]; !ok {
		return apperror.NotFound("collection", collectionID)
	}
	r.m.st.favorites[favKey{userID, collectionID}] = true
	return nil
}

func (r memFavorites) Remove(_ context.Context, userID, collectionID int64) error {
	delete(r.m.st.favorites, favKey{userID, collectionID})
	return nil
}

func (r memFavorites) Contains(_ context.Context, userID, collectionID int64) (bool, error) {
	return r.m.st.favorites[favKey{userID, collectionID}], nil
}

func (r memFavorites) Count(_ context.Context, collectionID int64) (int, error) {
	n := 0
	for k := range r.m.st.favorites {
		if k.collection == collectionID {
			n++
		}
	}
	return n, nil
}

// --- token blacklist ---

type memTokens struct{ m *memStore }

func (r memTokens) Add(_ context.Context, t *model.BlacklistedToken) error {
	if _, ok := r.m.st.tokens[t.JTI]; ok {
		return apperror.Conflict("token", t.JTI)
	}
	r.m.st.tokens[t.JTI] = *t
	return nil
}

func (r memTokens) Contains(_ context.Context, jti string) (bool, error) {
	_, ok := r.m.st.tokens[jti]
	return ok, nil
}

func (r memTokens) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for jti, t := range r.m.st.tokens {
		if t.ExpiresAt.Before(now) {
			delete(r.m.st.tokens, jti)
			n++
		}
	}
	return n, nil
}

// =========================================================================
// FIXTURES
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (m *memStore) addUser(email string) int64 {
	u := model.User{Email: email, IsActive: true}
	u.ID = m.st.next()
	m.st.users[u.ID] = u
	return u.ID
}

func (m *memStore) addCollection(owner int64, title string, public bool, cards ...[2]string) int64 {
	c := model.Collection{ID: m.st.next(), OwnerID: owner, Title: title, IsPublic: public}
	m.st.collections[c.ID] = c
	for _, fb := range cards {
		card := model.Card{ID: m.st.next(), CollectionID: c.ID, Front: fb[0], Back: fb[1]}
		m.st.cards[card.ID] = card
	}
	return c.ID
}

func (m *memStore) cardsOf(collectionID int64) []model.Card {
	cards, _ := memCards{m}.ListByCollection(context.Background(), collectionID)
	return cards
}
