package library

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"community-toolshare/logging"
	"community-toolshare/storage"
)

type UserInput struct {
	Names    string
	Surnames string
	Phone    string
	Address  string
	Role     Role
	Password string
}

func (in UserInput) validate() error {
	return firstError(
		requireMinLength(in.Names, 2, "names"),
		requireMinLength(in.Surnames, 2, "surnames"),
		requirePhone(in.Phone),
		requireNonBlank(in.Address, "address"),
		requireOneOf(string(in.Role), roles, "role"),
		requirePassword(in.Password),
	)
}

// Directory owns the users collection.
type Directory struct {
	gw  storage.Gateway
	log *zap.Logger
	mu  sync.Mutex
}

func NewDirectory(gw storage.Gateway, log *zap.Logger) *Directory {
	return &Directory{gw: gw, log: logging.OrNop(log).Named("users")}
}

func (d *Directory) load(op string) ([]User, error) {
	users, err := storage.Load[User](d.gw, storage.Users)
	if err != nil {
		d.log.Error("storage failure", zap.String("op", op), zap.Error(err))
		return nil, err
	}
	return users, nil
}

func (d *Directory) save(op string, users []User) error {
	if err := storage.Save(d.gw, storage.Users, users); err != nil {
		d.log.Error("storage failure", zap.String("op", op), zap.Error(err))
		return err
	}
	return nil
}

func (d *Directory) warn(op string, err error, fields ...zap.Field) error {
	d.log.Warn(err.Error(), append(fields, zap.String("op", op))...)
	return err
}

func hashPassword(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Create registers an active user. An empty role means resident.
func (d *Directory) Create(in UserInput) (*User, error) {
	return d.create("create_user", in, false)
}

// CreateFirst registers in only while the collection is empty. The check and
// the write happen under one lock.
func (d *Directory) CreateFirst(in UserInput) (*User, error) {
	return d.create("bootstrap", in, true)
}

func (d *Directory) create(op string, in UserInput, onlyFirst bool) (*User, error) {
	if in.Role == "" {
		in.Role = RoleResident
	}
	if err := in.validate(); err != nil {
		return nil, d.warn(op, err)
	}
	cred, err := hashPassword(in.Password)
	if err != nil {
		d.log.Error("hash credential", zap.Error(err))
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.load(op)
	if err != nil {
		return nil, err
	}
	if onlyFirst && len(users) > 0 {
		return nil, d.warn(op, newError(ErrInvalidState, "bootstrap is only allowed before any user exists"))
	}
	u := User{
		ID:         storage.NextID(users),
		Names:      strings.TrimSpace(in.Names),
		Surnames:   strings.TrimSpace(in.Surnames),
		Phone:      strings.TrimSpace(in.Phone),
		Address:    strings.TrimSpace(in.Address),
		Role:       in.Role,
		Credential: cred,
		IsActive:   true,
	}
	users = append(users, u)
	if err := d.save(op, users); err != nil {
		return nil, err
	}
	d.log.Info("user created", zap.Int64("user_id", u.ID), zap.String("role", string(u.Role)))
	return &u, nil
}

func (d *Directory) Get(id int64) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.load("get_user")
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, d.warn("get_user", newError(ErrUserNotFound, "user %d does not exist", id), zap.Int64("user_id", id))
}

// Active returns the user only if it exists and has not been soft-deleted.
func (d *Directory) Active(id int64) (*User, error) {
	u, err := d.Get(id)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, d.warn("get_user", newError(ErrUserNotFound, "user %d is inactive", id), zap.Int64("user_id", id))
	}
	return u, nil
}

func (d *Directory) List(includeInactive bool) ([]User, error) {
	return d.filter("list_users", func(u User) bool { return includeInactive || u.IsActive })
}

// SearchByName matches a case-insensitive substring of names or surnames.
func (d *Directory) SearchByName(q string) ([]User, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	return d.filter("search_users", func(u User) bool {
		return strings.Contains(strings.ToLower(u.Names), q) ||
			strings.Contains(strings.ToLower(u.Surnames), q)
	})
}

func (d *Directory) filter(op string, keep func(User) bool) ([]User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.load(op)
	if err != nil {
		return nil, err
	}
	out := []User{}
	for _, u := range users {
		if keep(u) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *Directory) mutate(op string, id int64, fn func(*User) error) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.load(op)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID != id {
			continue
		}
		if err := fn(&users[i]); err != nil {
			return nil, err
		}
		if err := d.save(op, users); err != nil {
			return nil, err
		}
		u := users[i]
		return &u, nil
	}
	return nil, d.warn(op, newError(ErrUserNotFound, "user %d does not exist", id), zap.Int64("user_id", id))
}

func (d *Directory) Update(id int64, patch UserPatch) (*User, error) {
	if patch.Empty() {
		return nil, d.warn("update_user", newError(ErrValidation, "nothing to update"), zap.Int64("user_id", id))
	}
	if err := patch.validate(); err != nil {
		return nil, d.warn("update_user", err, zap.Int64("user_id", id))
	}
	var cred string
	if patch.Password != nil {
		h, err := hashPassword(*patch.Password)
		if err != nil {
			d.log.Error("hash credential", zap.Error(err))
			return nil, err
		}
		cred = h
	}
	u, err := d.mutate("update_user", id, func(u *User) error {
		if patch.Names != nil {
			u.Names = strings.TrimSpace(*patch.Names)
		}
		if patch.Surnames != nil {
			u.Surnames = strings.TrimSpace(*patch.Surnames)
		}
		if patch.Phone != nil {
			u.Phone = strings.TrimSpace(*patch.Phone)
		}
		if patch.Address != nil {
			u.Address = strings.TrimSpace(*patch.Address)
		}
		if patch.Role != nil {
			u.Role = *patch.Role
		}
		if cred != "" {
			u.Credential = cred
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.log.Info("user updated", zap.Int64("user_id", id))
	return u, nil
}

// Delete deactivates the user; loans and solicitations keep pointing at it.
func (d *Directory) Delete(id int64) error {
	if _, err := d.mutate("delete_user", id, func(u *User) error {
		u.IsActive = false
		return nil
	}); err != nil {
		return err
	}
	d.log.Info("user deactivated", zap.Int64("user_id", id))
	return nil
}

// Authenticate checks the password against the stored bcrypt hash. Unknown,
// inactive and mismatched users all fail with ErrUnauthorized.
func (d *Directory) Authenticate(id int64, password string) (*User, error) {
	u, err := d.Get(id)
	if err != nil && !IsBusinessError(err) {
		return nil, err
	}
	if err != nil || !u.IsActive ||
		bcrypt.CompareHashAndPassword([]byte(u.Credential), []byte(password)) != nil {
		return nil, d.warn("authenticate", newError(ErrUnauthorized, "authentication failed for user %d", id), zap.Int64("user_id", id))
	}
	d.log.Info("user authenticated", zap.Int64("user_id", id))
	return u, nil
}
