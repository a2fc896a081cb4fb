package kernel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeSession(t *testing.T) {
	s := NewFakeSession()
	boom := errors.New("boom")
	s.SetError("bad()", boom)

	require.NoError(t, s.Run(context.Background(), "x = 1"))
	assert.Equal(t, boom, s.Run(context.Background(), "bad()"))
	assert.Equal(t, []string{"x = 1", "bad()"}, s.Codes())

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, 1, s.Stopped())
	assert.ErrorIs(t, s.Run(context.Background(), "y = 2"), ErrSessionClosed)
}

func TestFakeStarter(t *testing.T) {
	starter := &FakeStarter{Prepare: func(s *FakeSession) { s.SetError("fail", errors.New("x")) }}

	sess, err := starter.Start(context.Background(), "python3")
	require.NoError(t, err)
	assert.Error(t, sess.Run(context.Background(), "fail"))
	assert.Equal(t, []string{"python3"}, starter.Kernels)
	require.Len(t, starter.Sessions, 1)

	starter.Err = errors.New("no server")
	_, err = starter.Start(context.Background(), "python3")
	assert.Error(t, err)
}
