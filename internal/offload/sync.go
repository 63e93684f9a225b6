package offload

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/offloader/service/internal/attachment"
	"github.com/offloader/service/internal/logger"
)

// DefaultBatch is the page size used when Sync is given a non-positive batch.
const DefaultBatch = 100

// SyncStore is the persistence the syncer needs; *attachment.Repository
// satisfies it.
type SyncStore interface {
	Count(ctx context.Context) (int, error)
	CountPendingOffload(ctx context.Context) (int, error)
	ListPendingOffload(ctx context.Context, afterID string, limit int) ([]attachment.Attachment, error)
	Create(ctx context.Context, a *attachment.Attachment) error
	Delete(ctx context.Context, id string) error
}

// SyncReport holds the totals of one sync run.
type SyncReport struct {
	Found     int `json:"found"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Progress is reported after each attachment of a sync run. Pending is the
// number of candidates counted when the run started.
type Progress struct {
	Pending int
	Done    int
	Result  *Result
}

// ProgressFunc receives sync progress. It may be nil.
type ProgressFunc func(Progress)

// Syncer offloads attachments in bulk and checks storage connectivity.
type Syncer struct {
	repo       SyncStore
	uploader   *Uploader
	uploadRoot string
	now        func() time.Time
}

// NewSyncer creates a Syncer.
func NewSyncer(repo SyncStore, uploader *Uploader, uploadRoot string) *Syncer {
	return &Syncer{repo: repo, uploader: uploader, uploadRoot: uploadRoot, now: time.Now}
}

// Sync uploads every attachment that has no remote URL, one at a time. A
// failing attachment is counted and the run goes on. batch only sets how
// many candidates are read from the database per page; all of them are
// processed in this call.
func (s *Syncer) Sync(ctx context.Context, batch int, progress ProgressFunc) (*SyncReport, error) {
	if batch <= 0 {
		batch = DefaultBatch
	}
	SyncRunsTotal.Inc()

	pending, err := s.repo.CountPendingOffload(ctx)
	if err != nil {
		return nil, fmt.Errorf("count pending: %w", err)
	}
	logger.Log.Info().Int("pending", pending).Int("batch", batch).Msg("sync started")

	report := &SyncReport{}
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		page, err := s.repo.ListPendingOffload(ctx, cursor, batch)
		if err != nil {
			return report, fmt.Errorf("list pending: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for i := range page {
			res, err := s.uploader.Upload(ctx, page[i].ID)
			report.Found++
			if err != nil {
				report.Failed++
			} else {
				report.Succeeded++
			}
			if progress != nil {
				progress(Progress{Pending: pending, Done: report.Found, Result: res})
			}
		}

		cursor = page[len(page)-1].ID
		if len(page) < batch {
			break
		}
	}

	logger.Log.Info().
		Int("found", report.Found).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Msg("sync complete")
	return report, nil
}

// CheckConnection writes a throwaway text file, registers it as an
// attachment and offloads it. The file, the attachment record and the
// remote object are removed afterwards whatever the outcome, and the check
// fails if the number of attachments is not back to what it was.
func (s *Syncer) CheckConnection(ctx context.Context) (res *Result, err error) {
	before, err := s.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count attachments: %w", err)
	}

	now := s.now()
	rel := path.Join(now.Format("2006/01"),
		fmt.Sprintf("s3-test-%d-%s.txt", now.Unix(), uuid.NewString()[:8]))
	local := filepath.Join(s.uploadRoot, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return nil, fmt.Errorf("create test directory: %w", err)
	}
	body := fmt.Sprintf("S3 connection test %s\n", now.UTC().Format(time.RFC3339))
	if err := os.WriteFile(local, []byte(body), 0o644); err != nil {
		return nil, fmt.Errorf("write test file: %w", err)
	}

	a := &attachment.Attachment{File: rel, MimeType: "text/plain", Title: "S3 connection test"}
	if err := s.repo.Create(ctx, a); err != nil {
		removeQuiet(local)
		return nil, fmt.Errorf("register test attachment: %w", err)
	}
	defer func() {
		if cerr := s.cleanupCheck(context.WithoutCancel(ctx), a, local, before); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return s.uploader.Upload(ctx, a.ID)
}

func (s *Syncer) cleanupCheck(ctx context.Context, a *attachment.Attachment, local string, before int) error {
	if err := s.uploader.DeleteRemote(ctx, a); err != nil {
		logger.Log.Debug().Err(err).Str("attachment_id", a.ID).Msg("test object not removed")
	}
	if err := s.repo.Delete(ctx, a.ID); err != nil {
		logger.Log.Error().Err(err).Str("attachment_id", a.ID).Msg("test attachment not removed")
	}
	removeQuiet(local)

	after, err := s.repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("count attachments: %w", err)
	}
	if after != before {
		logger.Log.Error().Int("before", before).Int("after", after).Msg("connection test changed the attachment count")
		return fmt.Errorf("connection test left %d attachment(s) behind", after-before)
	}
	return nil
}

func removeQuiet(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Log.Warn().Err(err).Str("path", path).Msg("could not delete test file")
	}
}
