package identity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"pressroom/internal/config"
	"pressroom/internal/db"
	"pressroom/internal/domain"
	"pressroom/internal/identity"
	"pressroom/internal/migrate"
	"pressroom/internal/repo"
)

func newRoster(t *testing.T) identity.Roster {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = migrate.Migrate(context.Background(), conn)
	require.NoError(t, err)
	return identity.New(conn)
}

func TestRequire(t *testing.T) {
	member := domain.Principal{UserID: 1, CallerID: "m", Outlet: "daily-news"}
	editor := domain.Principal{UserID: 2, CallerID: "e", IsEditor: true}
	super := domain.Principal{UserID: 3, CallerID: "s", IsEditor: true, IsSuperEditor: true}

	require.NoError(t, identity.Require(member, identity.RoleOutletMember))
	require.NoError(t, identity.Require(editor, identity.RoleOutletMember, identity.RoleEditor))
	require.NoError(t, identity.Require(super, identity.RoleSuperEditor))

	err := identity.Require(member, identity.RoleEditor, identity.RoleSuperEditor)
	var forbidden identity.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	require.Equal(t, "role editor or super_editor required", err.Error())

	require.True(t, identity.Roles(super).Contains(identity.RoleEditor))
	require.False(t, identity.Roles(editor).Contains(identity.RoleOutletMember))
}

func TestSeedAndResolve(t *testing.T) {
	ctx := context.Background()
	r := newRoster(t)
	n, err := r.Seed(ctx, []config.RosterEntry{
		{CallerID: "tg-1", Username: "chief", SuperEditor: true},
		{CallerID: "tg-2", Username: "reporter", Outlet: "daily-news"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	p, err := r.Resolve(ctx, " tg-1 ")
	require.NoError(t, err)
	require.True(t, p.IsEditor, "super editor implies editor")
	require.True(t, p.IsSuperEditor)

	p, err = r.Resolve(ctx, "tg-2")
	require.NoError(t, err)
	require.Equal(t, "daily-news", p.Outlet)
	require.False(t, p.IsEditor)

	_, err = r.Resolve(ctx, "tg-404")
	var unknown identity.UnknownCallerError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "tg-404", unknown.CallerID)

	// seeding again is idempotent
	_, err = r.Seed(ctx, []config.RosterEntry{{CallerID: "tg-2", Outlet: "evening-post"}})
	require.NoError(t, err)
	p, err = r.Resolve(ctx, "tg-2")
	require.NoError(t, err)
	require.Equal(t, "evening-post", p.Outlet)
	require.Equal(t, "reporter", p.Username, "an empty username keeps the stored one")
}

func TestRosterChanges(t *testing.T) {
	ctx := context.Background()
	r := newRoster(t)

	_, err := r.AddOutletMember(ctx, "tg-2", "reporter", " ", "tg-1")
	require.True(t, errors.Is(err, identity.ErrInvalidEntry))
	_, err = r.AddEditor(ctx, "", "nobody", "tg-1")
	require.True(t, errors.Is(err, identity.ErrInvalidEntry))

	u, err := r.AddOutletMember(ctx, "tg-2", "reporter", "daily-news", "tg-1")
	require.NoError(t, err)
	require.NotZero(t, u.ID)
	require.Equal(t, "daily-news", u.Outlet)

	_, err = r.ToggleSuperEditor(ctx, "tg-2", "tg-1")
	require.ErrorIs(t, err, identity.ErrNotEditor)

	u, err = r.AddEditor(ctx, "tg-2", "", "tg-1")
	require.NoError(t, err)
	require.True(t, u.IsEditor)
	require.Equal(t, "daily-news", u.Outlet, "editors may also write for an outlet")

	u, err = r.ToggleSuperEditor(ctx, "tg-2", "tg-1")
	require.NoError(t, err)
	require.True(t, u.IsSuperEditor)

	u, err = r.RemoveEditor(ctx, "tg-2", "tg-1")
	require.NoError(t, err)
	require.False(t, u.IsEditor)
	require.False(t, u.IsSuperEditor)

	u, err = r.RemoveOutletMember(ctx, "tg-2", "tg-1")
	require.NoError(t, err)
	require.Empty(t, u.Outlet)

	_, err = r.RemoveEditor(ctx, "tg-404", "tg-1")
	var unknown identity.UnknownCallerError
	require.ErrorAs(t, err, &unknown)

	events, err := r.Repo.LatestEvents(ctx, repo.EventFilters{EntityKind: "user", Limit: 20})
	require.NoError(t, err)
	require.Len(t, events, 5)
	require.Equal(t, "tg-1", events[0].ActorID)
}

func TestRosterList(t *testing.T) {
	ctx := context.Background()
	r := newRoster(t)
	_, err := r.AddEditor(ctx, "ed-1", "editor", "system")
	require.NoError(t, err)
	_, err = r.AddOutletMember(ctx, "m-1", "a", "daily-news", "system")
	require.NoError(t, err)
	_, err = r.AddOutletMember(ctx, "m-2", "b", "evening-post", "system")
	require.NoError(t, err)

	all, err := r.List(ctx, identity.ListAll, "")
	require.NoError(t, err)
	require.Len(t, all, 3)

	editors, err := r.List(ctx, identity.ListEditors, "")
	require.NoError(t, err)
	require.Len(t, editors, 1)
	require.Equal(t, "ed-1", editors[0].CallerID)

	members, err := r.List(ctx, identity.ListMembers, "")
	require.NoError(t, err)
	require.Len(t, members, 2)

	daily, err := r.List(ctx, identity.ListMembers, "daily-news")
	require.NoError(t, err)
	require.Len(t, daily, 1)
	require.Equal(t, "m-1", daily[0].CallerID)
}
