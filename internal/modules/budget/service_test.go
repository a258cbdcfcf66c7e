package budget

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/famfin/internal/modules/groups"
	testingpkg "github.com/aristath/famfin/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(DateLayout, s)
	require.NoError(t, err)
	return d
}

type fixture struct {
	service *Service
	groups  *groups.Service
	group   *groups.Group // alice owns it, bob is a member
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	groupSvc := groups.NewService(
		groups.NewRepository(testingpkg.NewTestDB(t, "app").Conn(), zerolog.Nop()),
		zerolog.Nop(),
	)
	group, err := groupSvc.Create(ctx, "alice", "Household")
	require.NoError(t, err)
	_, err = groupSvc.Join(ctx, "bob", group.JoinCode)
	require.NoError(t, err)

	repo := NewRepository(testingpkg.NewTestDB(t, "ledger").Conn(), zerolog.Nop())
	repo.now = func() time.Time { return baseTime }

	return &fixture{
		service: NewService(repo, groupSvc, zerolog.Nop()),
		groups:  groupSvc,
		group:   group,
	}
}

func (f *fixture) add(t *testing.T, userID, groupID, kind, category, date string, amount float64) *Entry {
	t.Helper()
	e := &Entry{GroupID: groupID, Type: kind, Category: category, Date: date, Amount: amount}
	require.NoError(t, f.service.Create(context.Background(), userID, e))
	return e
}

func TestCreateAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e := f.add(t, "alice", "", TypeExpense, "food", "2024-05-02", 42.5)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "alice", e.UserID)
	assert.Equal(t, baseTime, e.CreatedAt)

	got, err := f.service.Get(ctx, "alice", e.ID)
	require.NoError(t, err)
	assert.Equal(t, *e, *got)

	// Private entries are invisible to everyone else
	_, err = f.service.Get(ctx, "bob", e.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = f.service.Create(ctx, "alice", &Entry{Type: "gift", Category: "x", Date: "2024-05-02", Amount: 1})
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestGroupEntriesRequireMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.service.Create(ctx, "mallory", &Entry{
		GroupID: f.group.ID, Type: TypeExpense, Category: "food", Date: "2024-05-02", Amount: 10,
	})
	assert.ErrorIs(t, err, ErrNotMember)

	shared := f.add(t, "bob", f.group.ID, TypeExpense, "food", "2024-05-02", 10)
	got, err := f.service.Get(ctx, "alice", shared.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.UserID)

	_, err = f.service.Get(ctx, "mallory", shared.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.service.List(ctx, "mallory", Filter{GroupID: f.group.ID})
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestList_OwnAndSharedEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, "alice", "", TypeIncome, "salary", "2024-05-01", 5000)
	f.add(t, "bob", "", TypeIncome, "salary", "2024-05-01", 4000)
	f.add(t, "bob", f.group.ID, TypeExpense, "rent", "2024-05-03", 1500)
	f.add(t, "alice", f.group.ID, TypeExpense, "food", "2024-04-20", 300)

	all, err := f.service.List(ctx, "alice", Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2024-05-03", all[0].Date, "newest first")
	assert.Equal(t, "2024-04-20", all[2].Date)

	group, err := f.service.List(ctx, "alice", Filter{GroupID: f.group.ID})
	require.NoError(t, err)
	assert.Len(t, group, 2)

	filtered, err := f.service.List(ctx, "bob", Filter{From: "2024-05-01", To: "2024-05-31", Type: TypeExpense})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "rent", filtered[0].Category)

	none, err := f.service.List(ctx, "mallory", Filter{})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestUpdateAndDeletePermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	byAlice := f.add(t, "alice", f.group.ID, TypeExpense, "food", "2024-05-02", 10)

	// Plain members cannot change someone else's shared entry
	edit := *byAlice
	edit.Amount = 99
	assert.ErrorIs(t, f.service.Update(ctx, "bob", &edit), ErrForbidden)
	assert.ErrorIs(t, f.service.Delete(ctx, "bob", byAlice.ID), ErrForbidden)

	// Editors can
	require.NoError(t, f.groups.UpdateRole(ctx, "alice", f.group.ID, "bob", groups.RoleEditor))
	require.NoError(t, f.service.Update(ctx, "bob", &edit))
	assert.Equal(t, "alice", edit.UserID, "the author is kept")

	got, err := f.service.Get(ctx, "alice", byAlice.ID)
	require.NoError(t, err)
	assert.Equal(t, 99.0, got.Amount)

	// Moving an entry into a group requires membership
	private := f.add(t, "mallory", "", TypeExpense, "food", "2024-05-02", 5)
	private.GroupID = f.group.ID
	assert.ErrorIs(t, f.service.Update(ctx, "mallory", private), ErrNotMember)

	require.NoError(t, f.service.Delete(ctx, "bob", byAlice.ID))
	_, err = f.service.Get(ctx, "alice", byAlice.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.service.Delete(ctx, "alice", "missing"), ErrNotFound)
}

func TestImport_SkipsInvalidRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.Import(ctx, "bob", []Entry{
		{Type: TypeIncome, Category: "salary", Date: "2024-05-01", Amount: 4000},
		{Type: TypeExpense, Category: "", Date: "2024-05-02", Amount: 10},
		{Type: TypeExpense, Category: "rent", Date: "2024-05-03", Amount: 1500, GroupID: f.group.ID},
		{Type: TypeExpense, Category: "rent", Date: "2024-05-03", Amount: 1500, GroupID: "someone-elses"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 2, result.Skipped)
	assert.Contains(t, result.Errors, 1)
	assert.Contains(t, result.Errors, 3)

	entries, err := f.service.List(ctx, "bob", Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestReport_UsesVisibleEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, "alice", "", TypeIncome, "salary", "2024-05-01", 5000)
	f.add(t, "bob", f.group.ID, TypeExpense, "rent", "2024-05-03", 1500)
	f.add(t, "bob", "", TypeExpense, "games", "2024-05-03", 80)

	report, err := f.service.Report(ctx, "alice", Filter{}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Entries)
	assert.Equal(t, 3500.0, report.Balance)
	require.Len(t, report.ByCategory, 1)
	assert.Equal(t, 100.0, report.ByCategory[0].Share)
}
