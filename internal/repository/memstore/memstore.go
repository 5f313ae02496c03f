// Package memstore keeps users, sessions and clients in process memory.
// It backs STORAGE=memory for local runs and the service tests.  Every
// method has the same contract as its MySQL counterpart in package
// repository, including the single-use Redeem.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/pipeline-crm/internal/model"
	"github.com/iliyamo/pipeline-crm/internal/repository"
)

// Store is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	users    map[string]model.User
	byEmail  map[string]string
	sessions map[string]model.Session
	clients  map[string]model.Client
}

func New() *Store {
	return &Store{
		users:    make(map[string]model.User),
		byEmail:  make(map[string]string),
		sessions: make(map[string]model.Session),
		clients:  make(map[string]model.Client),
	}
}

// Users returns the credential store view.
func (s *Store) Users() *Users { return &Users{s} }

// Sessions returns the session store view.
func (s *Store) Sessions() *Sessions { return &Sessions{s} }

// Clients returns the client store view.
func (s *Store) Clients() *Clients { return &Clients{s} }

// ---- users ----

type Users struct{ s *Store }

func (u *Users) Create(_ context.Context, user *model.User) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Email = repository.NormalizeEmail(user.Email)
	if _, ok := s.byEmail[user.Email]; ok {
		return repository.ErrEmailExists
	}
	s.users[user.ID] = *user
	s.byEmail[user.Email] = user.ID
	return nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (model.User, error) {
	s := u.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[repository.NormalizeEmail(email)]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return s.users[id], nil
}

func (u *Users) GetByID(_ context.Context, id string) (model.User, error) {
	s := u.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (u *Users) List(_ context.Context) ([]model.User, error) {
	s := u.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (u *Users) UpdateProfile(_ context.Context, id, name, email string) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	email = repository.NormalizeEmail(email)
	if other, taken := s.byEmail[email]; taken && other != id {
		return repository.ErrEmailExists
	}
	delete(s.byEmail, user.Email)
	user.Name, user.Email = name, email
	s.users[id] = user
	s.byEmail[email] = id
	return nil
}

func (u *Users) UpdatePassword(_ context.Context, id, hash string) error {
	return u.update(id, func(user *model.User) { user.PasswordHash = hash })
}

func (u *Users) SetActive(_ context.Context, id string, active bool) error {
	return u.update(id, func(user *model.User) { user.IsActive = active })
}

func (u *Users) update(id string, fn func(*model.User)) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&user)
	s.users[id] = user
	return nil
}

// ---- sessions ----

type Sessions struct{ s *Store }

func (ss *Sessions) Create(_ context.Context, sess *model.Session) error {
	s := ss.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	s.sessions[sess.ID] = *sess
	return nil
}

// Redeem deletes and returns the live session id under the write lock, so
// exactly one concurrent caller can win.  An expired row is dropped without
// being returned.
func (ss *Sessions) Redeem(_ context.Context, id string, now time.Time) (*model.Session, error) {
	s := ss.s
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	if !sess.Live(now) {
		delete(s.sessions, id)
		return nil, repository.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return &sess, nil
}

func (ss *Sessions) Delete(_ context.Context, id string) error {
	s := ss.s
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (ss *Sessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s := ss.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.sessions {
		if !sess.Live(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// Count reports how many session rows exist.
func (ss *Sessions) Count() int {
	s := ss.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ---- clients ----

type Clients struct{ s *Store }

func (cs *Clients) Create(_ context.Context, c *model.Client, creatorID string) error {
	s := cs.s
	s.mu.Lock()
	defer s.mu.Unlock()
	creator, ok := s.users[creatorID]
	if !ok {
		return repository.ErrNoCreator
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.UserID = creator.ID
	c.CreatorName = creator.Name
	c.UpdatedAt = nil
	s.clients[c.ID] = *c
	return nil
}

func (cs *Clients) GetByID(_ context.Context, id string) (model.Client, error) {
	s := cs.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return model.Client{}, repository.ErrNotFound
	}
	return c, nil
}

func (cs *Clients) List(_ context.Context) ([]model.Client, error) {
	s := cs.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (cs *Clients) UpdateStage(_ context.Context, id string, stage model.Stage, now time.Time) (int64, error) {
	s := cs.s
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return 0, nil
	}
	t := now.UTC()
	c.Stage = stage
	c.UpdatedAt = &t
	s.clients[id] = c
	return 1, nil
}

func (cs *Clients) Update(_ context.Context, in model.Client, now time.Time) (int64, error) {
	s := cs.s
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[in.ID]
	if !ok {
		return 0, nil
	}
	t := now.UTC()
	c.Name, c.Company, c.DealValue = in.Name, in.Company, in.DealValue
	c.Email, c.Notes, c.Phone = in.Email, in.Notes, in.Phone
	c.UpdatedAt = &t
	s.clients[in.ID] = c
	return 1, nil
}

func (cs *Clients) Delete(_ context.Context, id string) (int64, error) {
	s := cs.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[id]; !ok {
		return 0, nil
	}
	delete(s.clients, id)
	return 1, nil
}
