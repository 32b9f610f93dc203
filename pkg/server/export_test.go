package server

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soarclient/soarsocket/pkg/datastore"
	"github.com/soarclient/soarsocket/pkg/model"
	"github.com/soarclient/soarsocket/pkg/store"
)

func TestExportUsersYAML(t *testing.T) {
	h, _ := newTestHub(t, datastore.Records{
		"u2": {DisplayName: "Bob"},
		"u1": {DisplayName: "Alice", Role: model.RoleStaff},
	})

	data, err := ExportUsersYAML(h.Store())

	require.NoError(t, err)
	require.Equal(t, `users:
    - identity: u1
      name: Alice
      role: Staff
    - identity: u2
      name: Bob
`, string(data))
}

func TestImportUsersRoundTrip(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	// Given an export of one store
	src, _ := newTestHub(t, datastore.Records{
		"u1": {DisplayName: "Alice", Role: model.RoleOwner},
		"u2": {},
	})
	data, err := ExportUsersYAML(src.Store())
	r.NoError(err)

	// When imported into an empty one
	dst, p := newTestHub(t, nil)
	r.NoError(ImportUsersFromYAML(ctx, data, dst.Store()))

	// Then
	r.Equal(src.Store().All(), dst.Store().All())
	r.Equal(1, p.Saves())
}

func TestImportUsersRejectsBadEntries(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		yaml string
	}{
		{"bad role", "users:\n  - identity: u1\n    role: Admin\n"},
		{"empty identity", "users:\n  - identity: \"\"\n    role: Staff\n"},
		{"not yaml", "users: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, p := newTestHub(t, nil)
			require.Error(t, ImportUsersFromYAML(ctx, []byte(tt.yaml), h.Store()))
			require.Zero(t, h.Store().Len())
			require.Zero(t, p.Saves())
		})
	}
}

func TestLoadUsersFromYAML(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.yaml")
	r.NoError(os.WriteFile(path, []byte("users:\n  - identity: u9\n    name: Nine\n    role: Famous\n"), 0o600))
	h, _ := newTestHub(t, nil)

	r.NoError(LoadUsersFromYAML(ctx, path, h.Store()))
	r.True(h.IsSpecialRole("u9"))

	err := LoadUsersFromYAML(ctx, filepath.Join(t.TempDir(), "missing.yaml"), h.Store())
	r.True(errors.Is(err, os.ErrNotExist))
}

func TestImportUsersStoreFailure(t *testing.T) {
	p := datastore.NewMemory(nil)
	st, err := store.Open(context.Background(), p)
	require.NoError(t, err)
	p.FailSaves(errors.New("disk full"))

	err = ImportUsersFromYAML(context.Background(), []byte("users:\n  - identity: u1\n"), st)

	require.ErrorIs(t, err, store.ErrPersist)
}
