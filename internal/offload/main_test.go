package offload

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/offloader/service/internal/attachment"
	"github.com/offloader/service/internal/logger"
	"github.com/offloader/service/internal/settings"
	"github.com/offloader/service/internal/storage"
)

func TestMain(m *testing.M) {
	logger.Discard()
	os.Exit(m.Run())
}

// memRepo is an in-memory attachment store.
type memRepo struct {
	mu        sync.Mutex
	items     map[string]*attachment.Attachment
	setCalls  int
	createErr error
	deleteErr error
}

func newMemRepo(items ...*attachment.Attachment) *memRepo {
	r := &memRepo{items: make(map[string]*attachment.Attachment)}
	for _, a := range items {
		r.items[a.ID] = a
	}
	return r
}

func (r *memRepo) GetByID(_ context.Context, id string) (*attachment.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, attachment.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memRepo) SetRemoteURL(_ context.Context, id, remoteURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setCalls++
	a, ok := r.items[id]
	if !ok {
		return attachment.ErrNotFound
	}
	a.RemoteURL = &remoteURL
	return nil
}

func (r *memRepo) CountPendingOffload(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.items {
		if a.RemoteURL == nil {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) ListPendingOffload(_ context.Context, afterID string, limit int) ([]attachment.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.items))
	for id, a := range r.items {
		if a.RemoteURL == nil && id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]attachment.Attachment, 0, len(ids))
	for _, id := range ids {
		out = append(out, *r.items[id])
	}
	return out, nil
}

func (r *memRepo) Create(_ context.Context, a *attachment.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if a.ID == "" {
		a.ID = "generated-" + a.File
	}
	cp := *a
	r.items[a.ID] = &cp
	return nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.items[id]; !ok {
		return attachment.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *memRepo) Count(_ context.Context) (int, error) {
	return r.Len(), nil
}

func (r *memRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *memRepo) remoteURL(id string) *string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id].RemoteURL
}

// fixture wires an Uploader to in-memory collaborators.
type fixture struct {
	root     string
	repo     *memRepo
	client   *storage.MemoryClient
	store    *settings.MemoryStore
	provider *settings.Provider
	builds   int
	uploader *Uploader
	syncer   *Syncer
}

func defaultSettings() map[string]string {
	return map[string]string{
		settings.AccessKey:    "AKIATEST",
		settings.SecretKey:    "secret",
		settings.Bucket:       "test-bucket",
		settings.Endpoint:     "http://localstack:4566",
		settings.UsePathStyle: "true",
	}
}

func newFixture(t *testing.T, values map[string]string, items ...*attachment.Attachment) *fixture {
	t.Helper()
	f := &fixture{
		root:   t.TempDir(),
		repo:   newMemRepo(items...),
		client: storage.NewMemoryClient(),
		store:  settings.NewMemoryStore(values),
	}
	f.provider = settings.NewProvider(f.store, nil)
	factory := storage.NewFactory(func(context.Context, settings.StorageConfig) (storage.Client, error) {
		f.builds++
		return f.client, nil
	})
	f.uploader = NewUploader(f.repo, f.provider, factory, f.root)
	f.syncer = NewSyncer(f.repo, f.uploader, f.root)
	return f
}

// writeFile creates rel under the fixture's upload root.
func (f *fixture) writeFile(t *testing.T, rel, content string) string {
	t.Helper()
	p := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
