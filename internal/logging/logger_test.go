package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/embed-consent/internal/models"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default", cfg: DefaultConfig()},
		{name: "development", cfg: Config{Level: "debug", Development: true}},
		{name: "invalid level", cfg: Config{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestFromModel(t *testing.T) {
	c := FromModel(models.LogConfig{})
	assert.Equal(t, "info", c.Level)

	c = FromModel(models.LogConfig{Level: "debug", Development: true})
	assert.Equal(t, "debug", c.Level)
	assert.True(t, c.Development)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
