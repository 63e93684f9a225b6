package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(values map[string]string) *Provider {
	return NewProvider(NewMemoryStore(values), nil)
}

func TestProvider_Defaults(t *testing.T) {
	p := newTestProvider(nil)
	ctx := context.Background()

	region, err := p.Get(ctx, Region)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", region)

	endpoint, err := p.Get(ctx, Endpoint)
	require.NoError(t, err)
	assert.Equal(t, "", endpoint)

	cfg, err := p.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, DriverS3, cfg.Driver)
	assert.False(t, cfg.UsePathStyle)
	assert.False(t, cfg.DeleteLocal)
	assert.False(t, cfg.HasCredentials())
}

func TestProvider_EmptyValueMeansUnset(t *testing.T) {
	p := newTestProvider(map[string]string{Region: "  ", Bucket: ""})

	cfg, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, "", cfg.Bucket)
}

func TestProvider_SetAndSnapshot(t *testing.T) {
	p := newTestProvider(nil)
	ctx := context.Background()

	require.NoError(t, p.Set(ctx, AccessKey, "test-access-key"))
	require.NoError(t, p.Set(ctx, SecretKey, "test-secret-key"))
	require.NoError(t, p.Set(ctx, Bucket, "test-bucket"))
	require.NoError(t, p.Set(ctx, Region, "us-west-2"))
	require.NoError(t, p.Set(ctx, Endpoint, "http://localhost:4566"))
	require.NoError(t, p.Set(ctx, UsePathStyle, true))
	require.NoError(t, p.Set(ctx, DeleteLocal, true))
	require.NoError(t, p.Set(ctx, BasePrefix, "test-prefix"))

	cfg, err := p.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, StorageConfig{
		AccessKey:    "test-access-key",
		SecretKey:    "test-secret-key",
		Bucket:       "test-bucket",
		Region:       "us-west-2",
		Endpoint:     "http://localhost:4566",
		UsePathStyle: true,
		KeyPrefix:    "test-prefix",
		DeleteLocal:  true,
		Driver:       DriverS3,
	}, cfg)
	assert.True(t, cfg.HasCredentials())
}

func TestProvider_SetPrefixIsTrimmed(t *testing.T) {
	p := newTestProvider(nil)
	ctx := context.Background()

	require.NoError(t, p.Set(ctx, BasePrefix, "/production/uploads/"))
	v, err := p.Get(ctx, BasePrefix)
	require.NoError(t, err)
	assert.Equal(t, "production/uploads", v)
}

func TestProvider_SetBooleanIsCanonical(t *testing.T) {
	store := NewMemoryStore(nil)
	p := NewProvider(store, nil)
	ctx := context.Background()

	for _, in := range []any{true, "true", 1, "1", float64(1)} {
		require.NoError(t, p.Set(ctx, UsePathStyle, in))
		raw, _, _ := store.Get(ctx, UsePathStyle)
		assert.Equal(t, "true", raw, "input %v", in)
	}

	require.NoError(t, p.Set(ctx, UsePathStyle, false))
	raw, _, _ := store.Get(ctx, UsePathStyle)
	assert.Equal(t, "false", raw)
}

func TestProvider_LegacyBooleanEncodings(t *testing.T) {
	for _, raw := range []string{"true", "1", "TRUE", "yes", "on"} {
		p := newTestProvider(map[string]string{UsePathStyle: raw})
		cfg, err := p.Snapshot(context.Background())
		require.NoError(t, err)
		assert.True(t, cfg.UsePathStyle, "stored %q", raw)
	}
	for _, raw := range []string{"false", "0", "garbage"} {
		p := newTestProvider(map[string]string{UsePathStyle: raw})
		cfg, err := p.Snapshot(context.Background())
		require.NoError(t, err)
		assert.False(t, cfg.UsePathStyle, "stored %q", raw)
	}
}

func TestProvider_UnknownSetting(t *testing.T) {
	p := newTestProvider(nil)

	_, err := p.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownSetting)

	err = p.Set(context.Background(), "nope", "x")
	assert.ErrorIs(t, err, ErrUnknownSetting)
}

func TestProvider_InvalidDriver(t *testing.T) {
	p := newTestProvider(nil)
	err := p.Set(context.Background(), Driver, "ftp")
	assert.ErrorIs(t, err, ErrInvalidValue)

	p = newTestProvider(map[string]string{Driver: "ftp"})
	_, err = p.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestProvider_OnChange(t *testing.T) {
	p := newTestProvider(nil)
	calls := 0
	p.OnChange(func() { calls++ })

	require.NoError(t, p.Set(context.Background(), Bucket, "b"))
	require.NoError(t, p.Set(context.Background(), Region, "eu-west-1"))
	assert.Equal(t, 2, calls)

	_ = p.Set(context.Background(), Driver, "ftp")
	assert.Equal(t, 2, calls)
}

func TestNormalizePrefix(t *testing.T) {
	cases := map[string]string{
		"":               "",
		"   ":            "",
		"production":     "production",
		"staging/":       "staging",
		"/development":   "development",
		"/test-env/":     "test-env",
		"site-1/uploads": "site-1/uploads",
		" /a/b/ ":        "a/b",
		"a//b":           "a/b",
		"site//uploads/": "site/uploads",
		"//":             "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePrefix(in), "prefix %q", in)
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  string
		err   error
	}{
		{UsePathStyle, 1, "true", nil},
		{DeleteLocal, "0", "false", nil},
		{BasePrefix, "/site//uploads/", "site/uploads", nil},
		{Driver, " MinIO ", DriverMinio, nil},
		{Driver, "ftp", "", ErrInvalidValue},
		{"colour", "red", "", ErrUnknownSetting},
		{Bucket, "  media ", "media", nil},
	}
	for _, tc := range cases {
		got, err := Normalize(tc.name, tc.value)
		if tc.err != nil {
			assert.ErrorIs(t, err, tc.err, tc.name)
			continue
		}
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, got, tc.name)
	}
}
