package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"EStore/internal/filestore"
)

var (
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidUser        = errors.New("invalid user")
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	PassHash string `json:"pass_hash"`
	Deleted  bool   `json:"deleted,omitempty"`
}

func (u User) EntityID() int { return u.ID }

func (u User) WithID(id int) User {
	u.ID = id
	return u
}

// Store keeps accounts in users.json. Usernames are unique, compared after
// trimming and lower-casing.
type Store struct {
	users *filestore.Store[User]
	cost  int
}

func NewStore(users *filestore.Store[User]) *Store {
	return &Store{users: users, cost: bcrypt.DefaultCost}
}

func (s *Store) Ping() error { return s.users.Ping() }

func (s *Store) Register(username, password, name string, role Role) (User, error) {
	username = normalizeUsername(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return User{}, ErrInvalidUser
	}
	if role == "" {
		role = RoleCustomer
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, err
	}

	var created User
	err = s.users.Atomically(func(tx *filestore.Tx[User]) error {
		if len(tx.Filter(byUsername(username))) > 0 {
			return ErrUsernameExists
		}
		created = tx.Create(User{
			Username: username,
			Name:     strings.TrimSpace(name),
			Role:     role,
			PassHash: string(hash),
		})
		return nil
	})
	return created, err
}

func (s *Store) Verify(username, password string) (User, error) {
	u, ok := s.FindByUsername(username)
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PassHash), []byte(strings.TrimSpace(password))); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Store) FindByUsername(username string) (User, bool) {
	found := s.users.Filter(byUsername(normalizeUsername(username)))
	if len(found) == 0 {
		return User{}, false
	}
	return found[0], true
}

func (s *Store) Get(id int) (User, bool) {
	u, ok := s.users.Get(id)
	if !ok || u.Deleted {
		return User{}, false
	}
	return u, true
}

func (s *Store) List() []User {
	return s.users.Filter(func(u User) bool { return !u.Deleted })
}

// Delete keeps a tombstone in place of the account so its id, which carts
// and orders refer to, is never handed out again. The username is freed.
func (s *Store) Delete(id int) (bool, error) {
	var removed bool
	err := s.users.Atomically(func(tx *filestore.Tx[User]) error {
		u, ok := tx.Get(id)
		if !ok || u.Deleted {
			return nil
		}
		removed = tx.Put(User{ID: id, Name: u.Name, Role: u.Role, Deleted: true})
		return nil
	})
	return removed, err
}

// Changes lists the account fields to replace. Nil fields are left alone.
type Changes struct {
	Username *string
	Name     *string
	Password *string
}

// Update applies every change in one critical section, or none of them.
func (s *Store) Update(id int, ch Changes) (User, error) {
	var username, hash string
	if ch.Username != nil {
		if username = normalizeUsername(*ch.Username); username == "" {
			return User{}, ErrInvalidUser
		}
	}
	if ch.Password != nil {
		password := strings.TrimSpace(*ch.Password)
		if password == "" {
			return User{}, ErrInvalidUser
		}
		raw, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
		if err != nil {
			return User{}, err
		}
		hash = string(raw)
	}

	var updated User
	err := s.users.Atomically(func(tx *filestore.Tx[User]) error {
		u, ok := tx.Get(id)
		if !ok || u.Deleted {
			return ErrUserNotFound
		}
		if ch.Username != nil {
			for _, other := range tx.Filter(byUsername(username)) {
				if other.ID != id {
					return ErrUsernameExists
				}
			}
			u.Username = username
		}
		if ch.Name != nil {
			u.Name = strings.TrimSpace(*ch.Name)
		}
		if ch.Password != nil {
			u.PassHash = hash
		}
		updated = u
		tx.Put(u)
		return nil
	})
	return updated, err
}

func (s *Store) Rename(id int, username string) (User, error) {
	return s.Update(id, Changes{Username: &username})
}

func (s *Store) ChangeName(id int, name string) (User, error) {
	return s.Update(id, Changes{Name: &name})
}

func (s *Store) ChangePassword(id int, password string) (User, error) {
	return s.Update(id, Changes{Password: &password})
}

// EnsureAdmin creates an admin account unless the username is already taken.
func (s *Store) EnsureAdmin(username, password string) (User, bool, error) {
	if u, ok := s.FindByUsername(username); ok {
		return u, false, nil
	}
	u, err := s.Register(username, password, "Administrator", RoleAdmin)
	if errors.Is(err, ErrUsernameExists) {
		u, _ = s.FindByUsername(username)
		return u, false, nil
	}
	return u, err == nil, err
}

func byUsername(username string) func(User) bool {
	return func(u User) bool { return !u.Deleted && u.Username == username }
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
