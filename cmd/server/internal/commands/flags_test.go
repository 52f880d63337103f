package commands

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/mailroster/internal/secrets"
	memorystore "github.com/wolfeidau/mailroster/internal/store/memory"
)

func TestCatalogFlagsValidate(t *testing.T) {
	tests := []struct {
		name    string
		flags   CatalogFlags
		wantErr bool
	}{
		{name: "file", flags: CatalogFlags{File: "catalog.yaml"}},
		{name: "url", flags: CatalogFlags{URL: "https://catalog.internal"}},
		{name: "neither", flags: CatalogFlags{}, wantErr: true},
		{name: "both", flags: CatalogFlags{File: "catalog.yaml", URL: "https://catalog.internal"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.flags.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestPostgresStoreFlagsValidate(t *testing.T) {
	require.Error(t, (&PostgresStoreFlags{}).Validate())
	require.NoError(t, (&PostgresStoreFlags{ConnString: "postgres://localhost/mailroster"}).Validate())
}

func TestSealer(t *testing.T) {
	s, err := sealer("")
	require.NoError(t, err)
	require.IsType(t, secrets.Plaintext{}, s)

	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	s, err = sealer(key)
	require.NoError(t, err)
	require.IsType(t, &secrets.AESSealer{}, s)

	_, err = sealer("not base64!")
	require.Error(t, err)

	_, err = sealer(base64.StdEncoding.EncodeToString([]byte("short")))
	require.Error(t, err)
}

func TestLoadUsers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
users:
  - id: 0199f0a4-7a1e-7c3b-9a55-1f2d3c4b5a69
    companyId: 0199f0a4-7a1e-7c3b-9a55-000000000001
    name: Alice
    email: alice@co.com
  - id: 0199f0a4-7a1e-7c3b-9a55-1f2d3c4b5a70
    companyId: 0199f0a4-7a1e-7c3b-9a55-000000000001
    name: Bob
    active: false
`), 0o600))

	users, err := loadUsers(path)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "Alice", users[0].Name)
	require.True(t, users[0].Active)
	require.False(t, users[1].Active)

	dir := memorystore.NewUserDirectory()
	require.NoError(t, importUsers(context.Background(), dir, users))

	active, err := dir.ListActiveUsers(context.Background(), users[0].CompanyID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, users[0].UserID, active[0].UserID)
}

func TestLoadUsers_invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte("users:\n  - id: nope\n"), 0o600))

	_, err := loadUsers(path)
	require.Error(t, err)

	_, err = loadUsers(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
