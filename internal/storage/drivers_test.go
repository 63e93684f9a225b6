package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offloader/service/internal/settings"
)

type recorded struct {
	Method      string
	Path        string
	ACL         string
	ContentType string
	Body        []byte
}

// fakeS3 accepts object PUTs and DELETEs and records what it was sent.
type fakeS3 struct {
	mu       sync.Mutex
	requests []recorded
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recorded{
		Method:      r.Method,
		Path:        r.URL.Path,
		ACL:         r.Header.Get("X-Amz-Acl"),
		ContentType: r.Header.Get("Content-Type"),
		Body:        body,
	})
	f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) last(t *testing.T) recorded {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func driverConfig(endpoint, driver string) settings.StorageConfig {
	return settings.StorageConfig{
		AccessKey:    "test",
		SecretKey:    "test",
		Bucket:       "test-bucket",
		Region:       "us-east-1",
		Endpoint:     endpoint,
		UsePathStyle: true,
		Driver:       driver,
	}
}

func TestDrivers_PutAndDelete(t *testing.T) {
	for _, driver := range []string{settings.DriverS3, settings.DriverMinio} {
		t.Run(driver, func(t *testing.T) {
			fake := &fakeS3{}
			srv := httptest.NewServer(fake)
			defer srv.Close()

			ctx := context.Background()
			client, err := Build(ctx, driverConfig(srv.URL, driver))
			require.NoError(t, err)

			data := []byte("hello offload")
			res, err := client.Put(ctx, &PutInput{
				Bucket:      "test-bucket",
				Key:         "production/2026/02/photo.jpg",
				ContentType: "image/jpeg",
				Body:        bytes.NewReader(data),
				Size:        int64(len(data)),
				PublicRead:  true,
			})
			require.NoError(t, err)
			assert.Equal(t, "production/2026/02/photo.jpg", res.Key)

			put := fake.last(t)
			assert.Equal(t, http.MethodPut, put.Method)
			assert.Equal(t, "/test-bucket/production/2026/02/photo.jpg", put.Path)
			assert.Equal(t, "public-read", put.ACL)
			assert.Equal(t, "image/jpeg", put.ContentType)
			assert.Contains(t, string(put.Body), "hello offload")

			require.NoError(t, client.Delete(ctx, "test-bucket", "production/2026/02/photo.jpg"))
			del := fake.last(t)
			assert.Equal(t, http.MethodDelete, del.Method)
			assert.Equal(t, "/test-bucket/production/2026/02/photo.jpg", del.Path)
		})
	}
}

func TestDrivers_PutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
			`<Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`))
	}))
	defer srv.Close()

	for _, driver := range []string{settings.DriverS3, settings.DriverMinio} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			client, err := Build(ctx, driverConfig(srv.URL, driver))
			require.NoError(t, err)

			_, err = client.Put(ctx, &PutInput{
				Bucket:      "test-bucket",
				Key:         "a.txt",
				ContentType: "text/plain",
				Body:        bytes.NewReader([]byte("x")),
				Size:        1,
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "a.txt")
		})
	}
}

func TestMemoryClient(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryClient()

	_, err := m.Put(ctx, &PutInput{Bucket: "b", Key: "k", ContentType: "text/plain",
		Body: bytes.NewReader([]byte("v")), Size: 1, PublicRead: true})
	require.NoError(t, err)

	obj := m.Object("b", "k")
	require.NotNil(t, obj)
	assert.Equal(t, []byte("v"), obj.Data)
	assert.True(t, obj.PublicRead)

	m.FailOn("bad", assert.AnError)
	_, err = m.Put(ctx, &PutInput{Bucket: "b", Key: "bad", Body: bytes.NewReader(nil)})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 2, m.Puts())

	require.NoError(t, m.Delete(ctx, "b", "k"))
	require.NoError(t, m.Delete(ctx, "b", "missing"))
	assert.Equal(t, 0, m.Len())
}
