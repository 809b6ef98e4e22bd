package assets

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedcompose/backend"
	"feedcompose/models"
	"feedcompose/utils"
)

type stubUploader struct {
	mu     sync.Mutex
	nextID int
	result backend.UploadResult
	err    error
	calls  int
}

func (s *stubUploader) Upload(ctx context.Context, req backend.UploadRequest) (backend.UploadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return backend.UploadResult{}, s.err
	}
	if s.result != (backend.UploadResult{}) {
		return s.result, nil
	}
	s.nextID++
	return backend.UploadResult{
		DocumentID:  fmt.Sprintf("doc-%d", s.nextID),
		VersionID:   fmt.Sprintf("ver-%d", s.nextID),
		DownloadURL: fmt.Sprintf("https://files.example/doc-%d?versionId=ver-%d", s.nextID, s.nextID),
	}, nil
}

func testCC() models.ComposerContext {
	return models.ComposerContext{Kind: models.KindPost, ContextID: "rec-1", UserID: "user-1"}
}

func TestUploadRegistersUnescapedMarker(t *testing.T) {
	up := &stubUploader{result: backend.UploadResult{
		DocumentID:  "docA",
		VersionID:   "verA",
		DownloadURL: "https://files.example/a?versionId=verA&amp;operationContext=CHATTER",
	}}
	store := NewStore(up, 1600, utils.NewLogger(utils.ERROR))

	record, marker, err := store.Upload(context.Background(), testCC(), []byte("bytes"), "photo.png", models.VisibilityAllUsers)
	require.NoError(t, err)

	assert.Equal(t, "docA", record.DocumentID)
	assert.Equal(t, "verA", record.VersionID)
	// The marker is the download URL with HTML entities decoded.
	assert.Equal(t, "https://files.example/a?versionId=verA&operationContext=CHATTER", marker)

	snap := store.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, record, snap[marker])
}

func TestUploadFailureLeavesMapUntouched(t *testing.T) {
	up := &stubUploader{err: fmt.Errorf("network down")}
	store := NewStore(up, 1600, utils.NewLogger(utils.ERROR))

	_, _, err := store.Upload(context.Background(), testCC(), []byte("bytes"), "photo.png", models.VisibilityAllUsers)
	require.Error(t, err)

	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.KindUpload, appErr.Kind)
	assert.Zero(t, store.Len())
	// The store performs no retry of its own.
	assert.Equal(t, 1, up.calls)
}

func TestUploadIncompleteResponseIsAnError(t *testing.T) {
	up := &stubUploader{result: backend.UploadResult{DocumentID: "docA"}}
	store := NewStore(up, 1600, utils.NewLogger(utils.ERROR))

	_, _, err := store.Upload(context.Background(), testCC(), []byte("bytes"), "photo.png", models.VisibilityAllUsers)
	require.Error(t, err)
	assert.Zero(t, store.Len())
}

func TestSnapshotIsIndependentOfLaterUploads(t *testing.T) {
	up := &stubUploader{}
	store := NewStore(up, 1600, utils.NewLogger(utils.ERROR))

	_, _, err := store.Upload(context.Background(), testCC(), []byte("one"), "a.png", models.VisibilityAllUsers)
	require.NoError(t, err)
	snap := store.Snapshot()

	_, _, err = store.Upload(context.Background(), testCC(), []byte("two"), "b.png", models.VisibilityAllUsers)
	require.NoError(t, err)

	assert.Len(t, snap, 1)
	assert.Equal(t, 2, store.Len())
}

func TestRestoreReplacesEntries(t *testing.T) {
	store := NewStore(&stubUploader{}, 1600, utils.NewLogger(utils.ERROR))
	store.Restore(models.AssetMap{
		"marker-1": {DocumentID: "docA", VersionID: "verA"},
	})

	snap := store.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "docA", snap["marker-1"].DocumentID)

	store.Clear()
	assert.Zero(t, store.Len())
}

func TestConcurrentUploadsAllRegistered(t *testing.T) {
	up := &stubUploader{}
	store := NewStore(up, 1600, utils.NewLogger(utils.ERROR))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := store.Upload(context.Background(), testCC(), []byte("bytes"), fmt.Sprintf("f%d.png", i), models.VisibilityAllUsers)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, store.Len())
}
