package rpc_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/space-operator/spo-go/internal/rpc"
	"github.com/space-operator/spo-go/pkg/api"
)

type outcome struct {
	resp *api.Response
	err  error
}

func TestNextIDStartsAtOne(t *testing.T) {
	c := rpc.NewCorrelator()
	assert.Equal(t, api.RequestID(1), c.NextID())
	assert.Equal(t, api.RequestID(2), c.NextID())
}

func TestResolveOutOfOrder(t *testing.T) {
	c := rpc.NewCorrelator()
	got := map[api.RequestID]outcome{}

	first := c.NextID()
	second := c.NextID()
	for _, id := range []api.RequestID{first, second} {
		c.Register(id, func(resp *api.Response, err error) {
			got[id] = outcome{resp, err}
		})
	}
	assert.Equal(t, 2, c.Pending())

	r2 := &api.Response{ID: &second}
	r1 := &api.Response{ID: &first}
	assert.True(t, c.Resolve(second, r2))
	assert.True(t, c.Resolve(first, r1))

	require.Len(t, got, 2)
	assert.Same(t, r1, got[first].resp)
	assert.Same(t, r2, got[second].resp)
	assert.NoError(t, got[first].err)
	assert.Zero(t, c.Pending())
}

func TestResolveUnmatched(t *testing.T) {
	c := rpc.NewCorrelator()
	assert.False(t, c.Resolve(99, &api.Response{}))
}

func TestResolveOnlyOnce(t *testing.T) {
	c := rpc.NewCorrelator()
	id := c.NextID()
	calls := 0
	c.Register(id, func(*api.Response, error) { calls++ })

	assert.True(t, c.Resolve(id, &api.Response{}))
	assert.False(t, c.Resolve(id, &api.Response{}))
	assert.Equal(t, 1, calls)
}

func TestForget(t *testing.T) {
	c := rpc.NewCorrelator()
	id := c.NextID()
	called := false
	c.Register(id, func(*api.Response, error) { called = true })

	assert.True(t, c.Forget(id))
	assert.Zero(t, c.Pending())
	assert.False(t, c.Resolve(id, &api.Response{}))
	assert.False(t, called)
}

func TestForgetAfterResolve(t *testing.T) {
	c := rpc.NewCorrelator()
	id := c.NextID()
	c.Register(id, func(*api.Response, error) {})

	assert.True(t, c.Resolve(id, &api.Response{}))
	assert.False(t, c.Forget(id))
}

func TestRejectAll(t *testing.T) {
	c := rpc.NewCorrelator()
	boom := errors.New("closed")
	var errs []error

	for range 3 {
		c.Register(c.NextID(), func(resp *api.Response, err error) {
			assert.Nil(t, resp)
			errs = append(errs, err)
		})
	}

	c.RejectAll(boom)
	assert.Len(t, errs, 3)
	for _, err := range errs {
		assert.ErrorIs(t, err, boom)
	}
	assert.Zero(t, c.Pending())
}
