package shows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slideflow/internal/database"
	"slideflow/models"
)

func setupService(t *testing.T) *Service {
	t.Helper()
	db, err := database.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	accounts := database.NewAccountRepository(db)
	require.NoError(t, accounts.Create(models.Account{ID: "owner-1", Username: "alice"}))
	require.NoError(t, accounts.Create(models.Account{ID: "owner-2", Username: "bob"}))
	return NewService(database.NewShowRepository(db))
}

func TestSaveAndGet(t *testing.T) {
	svc := setupService(t)

	prefs := models.Preferences{
		Channels:        []string{"pics"},
		IntervalSeconds: 20,
		Transition:      models.TransitionSlide,
		CaptionsEnabled: true,
	}
	show, err := svc.Save("owner-1", "  Lazy Sunday  ", prefs)
	require.NoError(t, err)
	assert.Equal(t, "Lazy Sunday", show.Name)
	assert.Equal(t, "lazy-sunday", show.Slug)
	assert.NotEmpty(t, show.ID)
	assert.Len(t, show.ShareToken, shareTokenLength)
	assert.Equal(t, 20, show.Settings.IntervalSeconds)

	got, err := svc.Get("owner-1", show.ID)
	require.NoError(t, err)
	assert.Equal(t, show.ShareToken, got.ShareToken)
}

func TestSaveNormalizesSettings(t *testing.T) {
	svc := setupService(t)

	show, err := svc.Save("owner-1", "clamped", models.Preferences{
		Channels:        []string{" pics ", ""},
		IntervalSeconds: 100000,
		Transition:      "wipe",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"pics"}, show.Settings.Channels)
	assert.Equal(t, models.MaxIntervalSeconds, show.Settings.IntervalSeconds)
	assert.Equal(t, models.TransitionFade, show.Settings.Transition)
}

func TestOwnershipEnforced(t *testing.T) {
	svc := setupService(t)
	show, err := svc.Save("owner-1", "mine", models.DefaultPreferences())
	require.NoError(t, err)

	_, err = svc.Get("owner-2", show.ID)
	assert.ErrorIs(t, err, ErrNotShowOwner)
	assert.ErrorIs(t, svc.Delete("owner-2", show.ID), ErrNotShowOwner)
	_, err = svc.Rename("owner-2", show.ID, "stolen")
	assert.ErrorIs(t, err, ErrNotShowOwner)
}

func TestGetSharedStripsOwner(t *testing.T) {
	svc := setupService(t)
	show, err := svc.Save("owner-1", "shared", models.DefaultPreferences())
	require.NoError(t, err)

	public, err := svc.GetShared(show.ShareToken)
	require.NoError(t, err)
	assert.Empty(t, public.OwnerID)
	assert.Equal(t, show.ID, public.ID)

	_, err = svc.GetShared("bogus-token")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestRenameAndUpdateSettings(t *testing.T) {
	svc := setupService(t)
	show, err := svc.Save("owner-1", "before", models.DefaultPreferences())
	require.NoError(t, err)

	renamed, err := svc.Rename("owner-1", show.ID, "After Dark")
	require.NoError(t, err)
	assert.Equal(t, "after-dark", renamed.Slug)

	updated, err := svc.UpdateSettings("owner-1", show.ID, models.Preferences{IntervalSeconds: 42})
	require.NoError(t, err)
	assert.Equal(t, 42, updated.Settings.IntervalSeconds)
	assert.Equal(t, "After Dark", updated.Name)
}

func TestListNewestFirst(t *testing.T) {
	svc := setupService(t)
	_, err := svc.Save("owner-1", "one", models.DefaultPreferences())
	require.NoError(t, err)
	_, err = svc.Save("owner-2", "two", models.DefaultPreferences())
	require.NoError(t, err)

	list, err := svc.List("owner-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "one", list[0].Name)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Café au Lait":    "cafe-au-lait",
		"  spaced   out ": "spaced-out",
		"日本の写真":           "ri-ben-noxie-zhen",
		"!!!":             "show",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "input %q", in)
	}
}
