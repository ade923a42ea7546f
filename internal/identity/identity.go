package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"pressroom/internal/config"
	"pressroom/internal/domain"
	"pressroom/internal/events"
	"pressroom/internal/repo"
)

type Role string

const (
	RoleOutletMember Role = "outlet_member"
	RoleEditor       Role = "editor"
	RoleSuperEditor  Role = "super_editor"
)

// ForbiddenError indicates a missing role.
type ForbiddenError struct {
	Roles []Role
}

func (e ForbiddenError) Error() string {
	names := make([]string, 0, len(e.Roles))
	for _, r := range e.Roles {
		names = append(names, string(r))
	}
	return fmt.Sprintf("role %s required", strings.Join(names, " or "))
}

// UnknownCallerError means the caller is not on the roster.
type UnknownCallerError struct {
	CallerID string
}

func (e UnknownCallerError) Error() string {
	return fmt.Sprintf("caller %s is not on the roster", e.CallerID)
}

var (
	ErrNotEditor    = errors.New("caller is not an editor")
	ErrInvalidEntry = errors.New("invalid roster entry")
)

// Provider resolves an authenticated caller id into a Principal.
type Provider interface {
	Resolve(ctx context.Context, callerID string) (domain.Principal, error)
}

// Roles returns the role set a principal holds.
func Roles(p domain.Principal) mapset.Set[Role] {
	roles := mapset.NewSet[Role]()
	if p.Outlet != "" {
		roles.Add(RoleOutletMember)
	}
	if p.IsEditor {
		roles.Add(RoleEditor)
	}
	if p.IsSuperEditor {
		roles.Add(RoleSuperEditor)
	}
	return roles
}

// Require fails with ForbiddenError unless p holds one of roles.
func Require(p domain.Principal, roles ...Role) error {
	held := Roles(p)
	for _, r := range roles {
		if held.Contains(r) {
			return nil
		}
	}
	return ForbiddenError{Roles: roles}
}

// Roster is the SQL-backed Provider. It also edits the roster; every change
// is recorded as a roster.updated audit event.
type Roster struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Now    func() time.Time
}

func New(db *sql.DB) Roster {
	return Roster{DB: db, Repo: repo.Repo{DB: db}, Now: time.Now}
}

func (s Roster) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s Roster) Resolve(ctx context.Context, callerID string) (domain.Principal, error) {
	callerID = strings.TrimSpace(callerID)
	u, err := s.Repo.GetUserByCallerID(ctx, callerID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Principal{}, UnknownCallerError{CallerID: callerID}
	}
	if err != nil {
		return domain.Principal{}, err
	}
	return u.Principal(), nil
}

// Seed writes the configured roster entries. Existing users get the
// configured roles; users missing from the config are left untouched.
func (s Roster) Seed(ctx context.Context, entries []config.RosterEntry) (int, error) {
	n := 0
	for _, entry := range entries {
		_, err := s.update(ctx, entry.CallerID, entry.Username, "system", "seed", func(u *domain.User) error {
			u.Outlet = strings.TrimSpace(entry.Outlet)
			u.IsEditor = entry.Editor || entry.SuperEditor
			u.IsSuperEditor = entry.SuperEditor
			return nil
		})
		if err != nil {
			return n, fmt.Errorf("seed roster entry %s: %w", entry.CallerID, err)
		}
		n++
	}
	return n, nil
}

func (s Roster) AddOutletMember(ctx context.Context, callerID, username, outlet, actorID string) (domain.User, error) {
	outlet = strings.TrimSpace(outlet)
	if outlet == "" {
		return domain.User{}, fmt.Errorf("%w: outlet required", ErrInvalidEntry)
	}
	return s.update(ctx, callerID, username, actorID, "add_outlet_member", func(u *domain.User) error {
		u.Outlet = outlet
		return nil
	})
}

// RemoveOutletMember clears the user's outlet. The user row stays because
// submissions reference it.
func (s Roster) RemoveOutletMember(ctx context.Context, callerID, actorID string) (domain.User, error) {
	return s.updateExisting(ctx, callerID, actorID, "remove_outlet_member", func(u *domain.User) error {
		u.Outlet = ""
		return nil
	})
}

func (s Roster) AddEditor(ctx context.Context, callerID, username, actorID string) (domain.User, error) {
	return s.update(ctx, callerID, username, actorID, "add_editor", func(u *domain.User) error {
		u.IsEditor = true
		return nil
	})
}

// RemoveEditor revokes editor and super-editor rights.
func (s Roster) RemoveEditor(ctx context.Context, callerID, actorID string) (domain.User, error) {
	return s.updateExisting(ctx, callerID, actorID, "remove_editor", func(u *domain.User) error {
		u.IsEditor = false
		u.IsSuperEditor = false
		return nil
	})
}

// ToggleSuperEditor flips super-editor rights of an existing editor.
func (s Roster) ToggleSuperEditor(ctx context.Context, callerID, actorID string) (domain.User, error) {
	return s.updateExisting(ctx, callerID, actorID, "toggle_super_editor", func(u *domain.User) error {
		if !u.IsEditor {
			return ErrNotEditor
		}
		u.IsSuperEditor = !u.IsSuperEditor
		return nil
	})
}

type ListFilter string

const (
	ListAll     ListFilter = "all"
	ListEditors ListFilter = "editors"
	ListMembers ListFilter = "members"
)

// List returns roster entries ordered by outlet then caller id.
func (s Roster) List(ctx context.Context, filter ListFilter, outlet string) ([]domain.User, error) {
	f := repo.UserFilters{Outlet: strings.TrimSpace(outlet)}
	switch filter {
	case ListEditors:
		f.EditorsOnly = true
	case ListMembers:
		f.AnyOutlet = true
	}
	return s.Repo.ListUsers(ctx, f)
}

func (s Roster) updateExisting(ctx context.Context, callerID, actorID, change string, fn func(u *domain.User) error) (domain.User, error) {
	return s.apply(ctx, callerID, "", actorID, change, false, fn)
}

func (s Roster) update(ctx context.Context, callerID, username, actorID, change string, fn func(u *domain.User) error) (domain.User, error) {
	return s.apply(ctx, callerID, username, actorID, change, true, fn)
}

func (s Roster) apply(ctx context.Context, callerID, username, actorID, change string, create bool, fn func(u *domain.User) error) (domain.User, error) {
	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		return domain.User{}, fmt.Errorf("%w: caller id required", ErrInvalidEntry)
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	r := s.Repo.WithTx(tx)
	u, err := r.GetUserByCallerID(ctx, callerID)
	switch {
	case errors.Is(err, repo.ErrNotFound) && create:
		u = domain.User{CallerID: callerID, CreatedAt: s.now()}
	case errors.Is(err, repo.ErrNotFound):
		return domain.User{}, UnknownCallerError{CallerID: callerID}
	case err != nil:
		return domain.User{}, err
	}
	if username = strings.TrimSpace(username); username != "" {
		u.Username = username
	}
	if err := fn(&u); err != nil {
		return domain.User{}, err
	}
	saved, err := r.SaveUser(ctx, u)
	if err != nil {
		return domain.User{}, err
	}
	w := s.Events
	if w.Now == nil {
		w.Now = s.now
	}
	if err := w.Append(ctx, tx, events.Entry{
		Type:       events.RosterUpdated,
		EntityKind: "user",
		EntityID:   saved.ID,
		ActorID:    actorID,
		Payload: events.EventPayload{
			"caller_id":       saved.CallerID,
			"change":          change,
			"outlet":          saved.Outlet,
			"is_editor":       saved.IsEditor,
			"is_super_editor": saved.IsSuperEditor,
		},
	}); err != nil {
		return domain.User{}, err
	}
	return saved, tx.Commit()
}
