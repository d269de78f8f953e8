// Package servicetest provides in-memory store implementations for
// exercising the service layer without a database. The fakes mirror the
// repository contracts, including sentinel errors and ordering rules.
package servicetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"community-points-api/internal/model"
	"community-points-api/internal/repository"
)

// MemDB implements the service store interfaces in memory.
type MemDB struct {
	mu sync.Mutex

	users    map[int64]*model.User
	txs      []*model.PointsTransaction
	claims   map[int64]map[string]bool
	comments map[int64]*model.Comment
	ratings  map[int64]map[int64]*model.RatingEntry

	nextTxID      int64
	nextCommentID int64
	tick          time.Duration
	base          time.Time
}

// NewMemDB creates an empty in-memory store.
func NewMemDB() *MemDB {
	return &MemDB{
		users:    make(map[int64]*model.User),
		claims:   make(map[int64]map[string]bool),
		comments: make(map[int64]*model.Comment),
		ratings:  make(map[int64]map[int64]*model.RatingEntry),
		base:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

// next returns a strictly increasing timestamp so insertion order is
// always recoverable from created_at.
func (m *MemDB) next() time.Time {
	m.tick += time.Second
	return m.base.Add(m.tick)
}

// SeedUser inserts a user directly.
func (m *MemDB) SeedUser(id int64, username, displayName, email string) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &model.User{
		ID: id, Username: username, DisplayName: displayName, Email: email,
		CreatedAt: m.next(), UpdatedAt: m.next(),
	}
	m.users[id] = u
	return u
}

// --- UserStore ---

func (m *MemDB) GetByID(_ context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemDB) GetOrCreate(_ context.Context, id int64, username, displayName, email string) (*model.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, false, nil
	}
	u := &model.User{
		ID: id, Username: username, DisplayName: displayName, Email: email,
		CreatedAt: m.next(), UpdatedAt: m.next(),
	}
	m.users[id] = u
	cp := *u
	return &cp, true, nil
}

func (m *MemDB) UpdateProfile(_ context.Context, id int64, username, displayName, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Username, u.DisplayName, u.Email = username, displayName, email
	u.UpdatedAt = m.next()
	return nil
}

func (m *MemDB) Exists(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[id]
	return ok, nil
}

func (m *MemDB) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

// --- LedgerStore ---

func (m *MemDB) addTx(userID int64, points int, txType, note string) *model.PointsTransaction {
	m.nextTxID++
	tx := &model.PointsTransaction{
		ID: m.nextTxID, UserID: userID, Points: points,
		Type: txType, Note: note, CreatedAt: m.next(),
	}
	m.txs = append(m.txs, tx)
	return tx
}

func (m *MemDB) balanceLocked(userID int64) int {
	total := 0
	for _, tx := range m.txs {
		if tx.UserID == userID {
			total += tx.Signed()
		}
	}
	return total
}

func (m *MemDB) Add(_ context.Context, userID int64, points int, note string) (*model.PointsTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return nil, repository.ErrUserNotFound
	}
	return m.addTx(userID, points, model.TxTypeAdd, note), nil
}

func (m *MemDB) Deduct(_ context.Context, userID int64, points int, note string, allowNegative bool) (*model.PointsTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return nil, repository.ErrUserNotFound
	}
	if !allowNegative && m.balanceLocked(userID) < points {
		return nil, repository.ErrInsufficientPoints
	}
	return m.addTx(userID, points, model.TxTypeSubtract, note), nil
}

func (m *MemDB) Balance(_ context.Context, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balanceLocked(userID), nil
}

func (m *MemDB) History(_ context.Context, userID int64, offset, limit int, typeFilter string) ([]*model.PointsTransaction, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*model.PointsTransaction
	for _, tx := range m.txs {
		if tx.UserID == userID && (typeFilter == "" || tx.Type == typeFilter) {
			matched = append(matched, tx)
		}
	}
	// Newest first
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := make([]*model.PointsTransaction, end-offset)
	copy(page, matched[offset:end])
	return page, total, nil
}

func (m *MemDB) ClaimDaily(_ context.Context, userID int64, claimDate time.Time, points int) (*model.PointsTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return nil, repository.ErrUserNotFound
	}

	day := claimDate.Format(time.DateOnly)
	if m.claims[userID] == nil {
		m.claims[userID] = make(map[string]bool)
	}
	if m.claims[userID][day] {
		return nil, repository.ErrAlreadyClaimed
	}
	m.claims[userID][day] = true
	return m.addTx(userID, points, model.TxTypeAdd, model.NoteDailyClaim), nil
}

func (m *MemDB) LastClaimDate(_ context.Context, userID int64) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var last string
	for day := range m.claims[userID] {
		if day > last {
			last = day
		}
	}
	if last == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.DateOnly, last)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func (m *MemDB) leaderboardLocked() []*model.LeaderboardRow {
	rows := make([]*model.LeaderboardRow, 0, len(m.users))
	for id, u := range m.users {
		rows = append(rows, &model.LeaderboardRow{
			UserID: id, Username: u.Username, Total: m.balanceLocked(id),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		return rows[i].UserID < rows[j].UserID
	})
	return rows
}

func (m *MemDB) LeaderboardPage(_ context.Context, offset, limit int) ([]*model.LeaderboardRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.leaderboardLocked()
	if offset >= len(rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end], nil
}

func (m *MemDB) UserRank(_ context.Context, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return 0, repository.ErrUserNotFound
	}
	for i, row := range m.leaderboardLocked() {
		if row.UserID == userID {
			return i + 1, nil
		}
	}
	return 0, repository.ErrUserNotFound
}

// --- CommentStore ---

// MemComments is a comment-store view over MemDB. A separate type is
// needed because UserStore and CommentStore both declare GetByID.
type MemComments struct {
	db *MemDB
}

// Comments returns the comment-store view.
func (m *MemDB) Comments() *MemComments {
	return &MemComments{db: m}
}

func (s *MemComments) Create(_ context.Context, postID, authorID, parentID int64, content string) (*model.Comment, error) {
	m := s.db
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCommentID++
	now := m.next()
	c := &model.Comment{
		ID: m.nextCommentID, PostID: postID, AuthorID: authorID,
		ParentID: parentID, Content: content, CreatedAt: now, UpdatedAt: now,
	}
	m.comments[c.ID] = c
	cp := *c
	return &cp, nil
}

func (m *MemDB) commentByIDLocked(id int64) (*model.Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return nil, repository.ErrCommentNotFound
	}
	return c, nil
}

func (s *MemComments) GetByID(_ context.Context, id int64) (*model.Comment, error) {
	m := s.db
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.commentByIDLocked(id)
	if err != nil {
		return nil, err
	}
	cp := *c
	return &cp, nil
}

func (s *MemComments) UpdateContent(_ context.Context, id int64, content string) (*model.Comment, error) {
	m := s.db
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.commentByIDLocked(id)
	if err != nil {
		return nil, err
	}
	c.Content = content
	c.UpdatedAt = m.next()
	cp := *c
	return &cp, nil
}

func (s *MemComments) Delete(_ context.Context, id int64) error {
	m := s.db
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.commentByIDLocked(id); err != nil {
		return err
	}
	delete(m.comments, id)
	for cid, c := range m.comments {
		if c.ParentID == id {
			delete(m.comments, cid)
		}
	}
	return nil
}

func (s *MemComments) ListByPost(_ context.Context, postID int64, offset, limit int) ([]*model.Comment, int, error) {
	m := s.db
	m.mu.Lock()
	defer m.mu.Unlock()

	var parents []*model.Comment
	for _, c := range m.comments {
		if c.PostID == postID && c.ParentID == 0 {
			cp := *c
			cp.Children = []*model.Comment{}
			parents = append(parents, &cp)
		}
	}
	// Top level newest first
	sort.Slice(parents, func(i, j int) bool { return parents[i].ID > parents[j].ID })

	total := len(parents)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	parents = parents[offset:end]

	byID := make(map[int64]*model.Comment, len(parents))
	for _, p := range parents {
		byID[p.ID] = p
	}

	var children []*model.Comment
	for _, c := range m.comments {
		if _, ok := byID[c.ParentID]; ok {
			cp := *c
			children = append(children, &cp)
		}
	}
	// Replies oldest first
	sort.Slice(children, func(i, j int) bool { return children[i].ID < children[j].ID })
	for _, c := range children {
		parent := byID[c.ParentID]
		parent.Children = append(parent.Children, c)
	}

	return parents, total, nil
}

// --- RatingStore ---

func (m *MemDB) Insert(_ context.Context, seminarID, userID int64, rating model.RatingData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ratings[seminarID] == nil {
		m.ratings[seminarID] = make(map[int64]*model.RatingEntry)
	}
	if _, ok := m.ratings[seminarID][userID]; ok {
		return repository.ErrDuplicateRating
	}
	entry := &model.RatingEntry{UserID: userID, Rating: rating, CreatedAt: m.next()}
	if u, ok := m.users[userID]; ok {
		entry.DisplayName = u.DisplayName
		entry.Email = u.Email
	}
	m.ratings[seminarID][userID] = entry
	return nil
}

func (m *MemDB) ListBySeminar(_ context.Context, seminarID int64) ([]*model.RatingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []*model.RatingEntry
	for _, e := range m.ratings[seminarID] {
		cp := *e
		entries = append(entries, &cp)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })
	return entries, nil
}
