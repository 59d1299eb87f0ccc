package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/meysamhadeli/codechat/backend/models"
	"github.com/meysamhadeli/codechat/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusStep struct {
	status *models.IndexingStatus
	err    error
}

type scriptedSource struct {
	mu        sync.Mutex
	steps     []statusStep
	polls     int
	treeFetch int
	tree      *models.FileTreeNode
	treeErr   error
}

func (s *scriptedSource) IndexingStatus(ctx context.Context) (*models.IndexingStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if s.polls > len(s.steps) {
		return progressStatus(50), nil
	}
	step := s.steps[s.polls-1]
	return step.status, step.err
}

func (s *scriptedSource) FileStructure(ctx context.Context) (*models.FileTreeNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.treeFetch++
	return s.tree, s.treeErr
}

func (s *scriptedSource) counts() (polls, trees int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls, s.treeFetch
}

func progressStatus(progress int) *models.IndexingStatus {
	return &models.IndexingStatus{IsIndexing: true, Progress: progress, Message: "Indexing..."}
}

func completeStatus() *models.IndexingStatus {
	return &models.IndexingStatus{IsIndexing: false, Progress: 100, Message: "Indexing completed successfully"}
}

func failedStatus(message string) *models.IndexingStatus {
	return &models.IndexingStatus{IsIndexing: false, Message: "Indexing failed: " + message, Error: &message}
}

type pollerRecorder struct {
	mu       sync.Mutex
	statuses []*models.IndexingStatus
	ready    []*models.FileTreeNode
	failures []string
}

func (r *pollerRecorder) hooks() PollerHooks {
	return PollerHooks{
		OnStatus: func(status *models.IndexingStatus) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.statuses = append(r.statuses, status)
		},
		OnReady: func(tree *models.FileTreeNode) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.ready = append(r.ready, tree)
		},
		OnFailed: func(message string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.failures = append(r.failures, message)
		},
	}
}

func waitDone(t *testing.T, poller *StatusPoller) {
	t.Helper()
	select {
	case <-poller.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestStatusPoller_StopsAfterCompletion(t *testing.T) {
	tree := models.NewRootNode(map[string]*models.FileTreeNode{
		"main.go": {Type: models.NodeFile, Path: "main.go", Language: "go"},
	})
	source := &scriptedSource{
		steps: []statusStep{{status: progressStatus(40)}, {status: completeStatus()}},
		tree:  tree,
	}
	recorder := &pollerRecorder{}
	poller := NewStatusPoller(source, time.Millisecond, recorder.hooks(), utils.NewDiscardLogger())

	require.NoError(t, poller.Start(context.Background()))
	waitDone(t, poller)

	polls, trees := source.counts()
	assert.Equal(t, 2, polls)
	assert.Equal(t, 1, trees)
	assert.Len(t, recorder.statuses, 2)
	assert.Equal(t, 40, recorder.statuses[0].Progress)
	require.Len(t, recorder.ready, 1)
	assert.Same(t, tree, recorder.ready[0])
	assert.Empty(t, recorder.failures)
	assert.False(t, poller.Running())
}

func TestStatusPoller_KeepsPollingWhileIndexingAtFullProgress(t *testing.T) {
	almost := &models.IndexingStatus{IsIndexing: true, Progress: 100}
	source := &scriptedSource{
		steps: []statusStep{{status: almost}, {status: almost}, {status: completeStatus()}},
	}
	recorder := &pollerRecorder{}
	poller := NewStatusPoller(source, time.Millisecond, recorder.hooks(), utils.NewDiscardLogger())

	require.NoError(t, poller.Start(context.Background()))
	waitDone(t, poller)

	polls, _ := source.counts()
	assert.Equal(t, 3, polls)
	assert.Len(t, recorder.ready, 1)
}

func TestStatusPoller_TransportFailureIsRetried(t *testing.T) {
	source := &scriptedSource{
		steps: []statusStep{
			{err: errors.New("connection refused")},
			{err: errors.New("connection refused")},
			{status: completeStatus()},
		},
	}
	recorder := &pollerRecorder{}
	poller := NewStatusPoller(source, time.Millisecond, recorder.hooks(), utils.NewDiscardLogger())

	require.NoError(t, poller.Start(context.Background()))
	waitDone(t, poller)

	polls, trees := source.counts()
	assert.Equal(t, 3, polls)
	assert.Equal(t, 1, trees)
	assert.Len(t, recorder.statuses, 1)
	assert.Len(t, recorder.ready, 1)
}

func TestStatusPoller_IndexingErrorStops(t *testing.T) {
	source := &scriptedSource{
		steps: []statusStep{{status: progressStatus(10)}, {status: failedStatus("clone failed")}},
	}
	recorder := &pollerRecorder{}
	poller := NewStatusPoller(source, time.Millisecond, recorder.hooks(), utils.NewDiscardLogger())

	require.NoError(t, poller.Start(context.Background()))
	waitDone(t, poller)

	polls, trees := source.counts()
	assert.Equal(t, 2, polls)
	assert.Zero(t, trees)
	assert.Equal(t, []string{"clone failed"}, recorder.failures)
	assert.Empty(t, recorder.ready)
}

func TestStatusPoller_TreeFailureStillSignalsReady(t *testing.T) {
	source := &scriptedSource{
		steps:   []statusStep{{status: completeStatus()}},
		treeErr: errors.New("codebase not indexed"),
	}
	recorder := &pollerRecorder{}
	poller := NewStatusPoller(source, time.Millisecond, recorder.hooks(), utils.NewDiscardLogger())

	require.NoError(t, poller.Start(context.Background()))
	waitDone(t, poller)

	require.Len(t, recorder.ready, 1)
	assert.Nil(t, recorder.ready[0])
}

func TestStatusPoller_StopIsIdempotent(t *testing.T) {
	source := &scriptedSource{}
	recorder := &pollerRecorder{}
	poller := NewStatusPoller(source, time.Millisecond, recorder.hooks(), utils.NewDiscardLogger())

	poller.Stop()
	require.NoError(t, poller.Start(context.Background()))
	assert.ErrorIs(t, poller.Start(context.Background()), ErrPollerRunning)

	poller.Stop()
	poller.Stop()
	waitDone(t, poller)
	poller.Stop()

	assert.False(t, poller.Running())
	assert.Empty(t, recorder.ready)
	assert.Empty(t, recorder.failures)

	// A stopped poller can be started again.
	require.NoError(t, poller.Start(context.Background()))
	poller.Stop()
	waitDone(t, poller)
}

func TestStatusPoller_NothingPublishedAfterStop(t *testing.T) {
	source := &scriptedSource{}
	var mu sync.Mutex
	published := 0
	var poller *StatusPoller
	poller = NewStatusPoller(source, time.Millisecond, PollerHooks{
		OnStatus: func(*models.IndexingStatus) {
			mu.Lock()
			defer mu.Unlock()
			published++
			if published == 3 {
				poller.Stop()
			}
		},
	}, utils.NewDiscardLogger())

	require.NoError(t, poller.Start(context.Background()))
	waitDone(t, poller)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, published)
}

func TestStatusPoller_ContextCancellationStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	poller := NewStatusPoller(&scriptedSource{}, time.Millisecond, PollerHooks{}, utils.NewDiscardLogger())

	require.NoError(t, poller.Start(ctx))
	cancel()
	waitDone(t, poller)
	assert.False(t, poller.Running())
}
