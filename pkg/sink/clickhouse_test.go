package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploytrack/deploytrack/pkg/deployment"
)

type recordingRepo struct {
	written []*deployment.Deployment
	err     error
}

func (r *recordingRepo) CreateTableIfNotExists(ctx context.Context) error { return nil }

func (r *recordingRepo) WriteDeployments(ctx context.Context, ds []*deployment.Deployment) error {
	if r.err != nil {
		return r.err
	}
	r.written = append(r.written, ds...)
	return nil
}

func (r *recordingRepo) DeleteDeployments(ctx context.Context, chainID uint64) error { return nil }

func TestClickHouse_WritesBatch(t *testing.T) {
	t.Parallel()
	repo := &recordingRepo{}
	s := NewClickHouse(repo, nil, nil)

	d := testDeployment(1048970, "0x006e27b6a72e1f34c626762f3c4761547aff1421")
	require.NoError(t, s.Write(t.Context(), []*deployment.Deployment{d}))
	require.Len(t, repo.written, 1)
	assert.Equal(t, d, repo.written[0])
}

func TestClickHouse_EmptyWriteIsNoOp(t *testing.T) {
	t.Parallel()
	repo := &recordingRepo{err: errors.New("should not be called")}
	s := NewClickHouse(repo, nil, nil)

	require.NoError(t, s.Write(t.Context(), nil))
}

func TestClickHouse_WriteErrorPropagates(t *testing.T) {
	t.Parallel()
	writeErr := errors.New("batch failed")
	s := NewClickHouse(&recordingRepo{err: writeErr}, nil, nil)

	d := testDeployment(1, "0x1111111111111111111111111111111111111111")
	require.ErrorIs(t, s.Write(t.Context(), []*deployment.Deployment{d}), writeErr)
}

func TestClickHouse_Close(t *testing.T) {
	t.Parallel()

	closed := false
	s := NewClickHouse(&recordingRepo{}, func() error {
		closed = true
		return nil
	}, nil)
	require.NoError(t, s.Close())
	assert.True(t, closed)

	require.NoError(t, NewClickHouse(&recordingRepo{}, nil, nil).Close())
}
