package remote_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/thumbgate/pkg/remote"
	"github.com/marmos91/thumbgate/pkg/remote/remotetest"
)

func TestJoinSession(t *testing.T) {
	ctx := context.Background()
	gw := remotetest.New().AddSession("good").DenySession("denied")
	dialer := gw.Start(t)

	t.Run("Joins", func(t *testing.T) {
		s, err := dialer.JoinSession(ctx, "good")
		require.NoError(t, err)
		assert.Equal(t, "good", s.Key())
		assert.Equal(t, 1, gw.Open())

		require.NoError(t, s.Close(ctx))
		assert.Equal(t, 0, gw.Open())
	})

	t.Run("UnknownKey", func(t *testing.T) {
		s, err := dialer.JoinSession(ctx, "stale")
		assert.Nil(t, s)
		assert.ErrorIs(t, err, remote.ErrSessionNotFound)
	})

	t.Run("Denied", func(t *testing.T) {
		_, err := dialer.JoinSession(ctx, "denied")
		assert.ErrorIs(t, err, remote.ErrPermissionDenied)
	})
}

func TestSessionCalls(t *testing.T) {
	ctx := context.Background()
	gw := remotetest.New().
		AddSession("k").
		AddImage(remote.Image{ID: 1, PixelsID: 101, GroupID: 3}, []byte("jpeg-1")).
		AddImage(remote.Image{ID: 2, PixelsID: 102, GroupID: 3}, nil)
	dialer := gw.Start(t)

	s, err := dialer.JoinSession(ctx, "k")
	require.NoError(t, err)

	images, err := s.FindImages(ctx, []int64{1, 2, 99})
	require.NoError(t, err)
	assert.ElementsMatch(t, []remote.Image{
		{ID: 1, PixelsID: 101, GroupID: 3},
		{ID: 2, PixelsID: 102, GroupID: 3},
	}, images)

	thumbs, err := s.ThumbnailsByLongestSide(ctx, 128, []int64{101, 102}, 3)
	require.NoError(t, err)
	assert.Equal(t, map[int64][]byte{101: []byte("jpeg-1")}, thumbs)
	assert.Equal(t, 128, gw.LastLongestSide())
	assert.Equal(t, []int64{3}, gw.ThumbnailGroups())

	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx), "second close is a no-op")
	assert.Equal(t, 1, gw.Closes())

	_, err = s.FindImages(ctx, []int64{1})
	assert.ErrorIs(t, err, remote.ErrClosed)
}

func TestThumbnailFailure(t *testing.T) {
	ctx := context.Background()
	gw := remotetest.New().AddSession("k").FailThumbnails(errors.New("renderer down"))
	dialer := gw.Start(t)

	s, err := dialer.JoinSession(ctx, "k")
	require.NoError(t, err)
	defer s.Close(ctx)

	_, err = s.ThumbnailsByLongestSide(ctx, 96, []int64{1}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "renderer down")
}

func TestConfigDefaults(t *testing.T) {
	cfg := &remote.Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 4064, cfg.Port)
	assert.NotZero(t, cfg.CloseTimeout)

	d, err := remote.Dial(cfg)
	require.NoError(t, err)
	assert.NoError(t, d.Close())
}
