package consent

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bnema/embed-consent/internal/models"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()

	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return map[string]Backend{
		"memory": NewMemory(),
		"file":   NewFile(afero.NewMemMapFs(), "/data/consent.json"),
		"sqlite": db,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewStore(b, "", zaptest.NewLogger(t))

			assert.True(t, s.Available())
			assert.False(t, s.Read(), "absent preference reads as false")

			assert.True(t, s.Write(true))
			assert.True(t, s.Read())

			assert.True(t, s.Write(false))
			assert.False(t, s.Read())

			_, ok, err := b.Get(StorageKey)
			require.NoError(t, err)
			assert.False(t, ok, "false is stored as absence")
		})
	}
}

func TestStoreUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
	}{
		{name: "disabled", backend: Unavailable{}},
		{name: "read-only filesystem", backend: NewFile(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/consent.json")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(tt.backend, "", zaptest.NewLogger(t))

			assert.False(t, s.Available())
			assert.False(t, s.Read())
			assert.False(t, s.Write(true))
			assert.False(t, s.Read())
			assert.False(t, s.Write(false))
		})
	}
}

func TestStoreCorruptFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/consent.json", []byte("{not json"), 0644))

	s := NewStore(NewFile(fsys, "/consent.json"), "", zaptest.NewLogger(t))
	assert.False(t, s.Read())
	assert.False(t, s.Write(true))
}

func TestStoreOriginScope(t *testing.T) {
	b := NewMemory()
	a := NewStore(b, "https://a.example", nil)
	other := NewStore(b, "https://b.example", nil)

	require.True(t, a.Write(true))
	assert.True(t, a.Read())
	assert.False(t, other.Read())
}

func TestNilBackendIsUnavailable(t *testing.T) {
	s := NewStore(nil, "", nil)
	assert.False(t, s.Available())
	assert.False(t, s.Read())
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		cfg     models.StorageConfig
		want    any
		wantErr bool
	}{
		{name: "default is file", cfg: models.StorageConfig{}, want: &File{}},
		{name: "file", cfg: models.StorageConfig{Driver: models.DriverFile, Path: "/x/c.json"}, want: &File{}},
		{name: "memory", cfg: models.StorageConfig{Driver: models.DriverMemory}, want: &Memory{}},
		{name: "none", cfg: models.StorageConfig{Driver: models.DriverNone}, want: Unavailable{}},
		{name: "sqlite", cfg: models.StorageConfig{Driver: models.DriverSQLite, Path: ":memory:"}, want: &SQLite{}},
		{name: "unknown", cfg: models.StorageConfig{Driver: "redis"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, closer, err := Open(tt.cfg, afero.NewMemMapFs())
			require.NotNil(t, closer)
			defer closer.Close()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, b)
		})
	}
}
