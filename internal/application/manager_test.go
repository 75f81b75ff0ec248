package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebmoore/codereviewer/internal/application"
	"github.com/calebmoore/codereviewer/internal/domain/model"
)

func TestManager_CreateResolvesBranchInputs(t *testing.T) {
	gh := &mockGitHubClient{
		fetchRepo: func(_ context.Context, repoFullName string) (*model.Repository, error) {
			return &model.Repository{FullName: repoFullName, DefaultBranch: "trunk"}, nil
		},
		fetchPR: func(_ context.Context, _ string, number int) (*model.PullRequest, error) {
			return &model.PullRequest{Number: number, Branch: "feat-y"}, nil
		},
	}
	provider := application.NewGitHubClientProvider(gh, "testuser")
	m := application.NewManager(provider, &mockAnalyzer{}, &mockReportStore{}, 0, testLogger())

	ws, err := m.Create(context.Background(), "alice", "widgets", 7)
	require.NoError(t, err)
	require.NotEmpty(t, ws.ID)

	state := ws.Snapshot()
	assert.Equal(t, "feat-y", state.PRBranch)
	assert.Equal(t, "trunk", state.DefaultBranch)
	assert.Equal(t, 7, state.PRNumber)

	assert.Same(t, ws, m.Get(ws.ID))
	assert.Equal(t, 1, m.Count())

	m.Delete(ws.ID)
	assert.Nil(t, m.Get(ws.ID))
	assert.Zero(t, m.Count())
}

func TestManager_CreateWithoutClient(t *testing.T) {
	provider := application.NewGitHubClientProvider(nil, "")
	m := application.NewManager(provider, &mockAnalyzer{}, &mockReportStore{}, 0, testLogger())

	_, err := m.Create(context.Background(), "alice", "widgets", 0)
	assert.ErrorIs(t, err, application.ErrNotAuthenticated)
}
