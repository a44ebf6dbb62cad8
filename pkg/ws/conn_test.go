package ws_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/space-operator/spo-go/internal/assert/helpers"
	"github.com/space-operator/spo-go/pkg/api"
	"github.com/space-operator/spo-go/pkg/credential"
	"github.com/space-operator/spo-go/pkg/ws"
)

const methodPing api.Method = "Ping"

func TestSendNotConnected(t *testing.T) {
	conn := ws.New("ws://127.0.0.1:1/ws")
	assert.Equal(t, ws.StateDisconnected, conn.State())

	_, err := conn.Send(context.Background(), methodPing, nil)
	assert.ErrorIs(t, err, ws.ErrNotConnected)
}

func TestConnectDialFailure(t *testing.T) {
	svc := helpers.NewFakeService(t)
	url := svc.WSURL()
	svc.Close()

	conn := ws.New(url)
	err := conn.Connect(context.Background())
	assert.ErrorIs(t, err, ws.ErrDialFailed)
	assert.Equal(t, ws.StateDisconnected, conn.State())
}

func TestConnectTwice(t *testing.T) {
	svc := helpers.NewFakeService(t)
	conn := connect(t, svc)

	assert.ErrorIs(t, conn.Connect(context.Background()),
		ws.ErrAlreadyConnected)

	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.Connect(context.Background()),
		ws.ErrConnectionClosed)
}

func TestAuthenticate(t *testing.T) {
	svc := helpers.NewFakeService(t)
	svc.Handle(api.MethodAuthenticate, func(r helpers.Request) []any {
		var params api.AuthenticateParams
		_ = json.Unmarshal(r.Params, &params)
		if params.Token != "b3-token" {
			return []any{helpers.ErrFrame(r.ID, "bad token")}
		}
		return []any{helpers.OkFrame(r.ID, api.Identity{UserID: "user-1"})}
	})

	conn := connect(t, svc, ws.WithToken("b3-token"))
	waitAuth(t, conn)

	id, ok := conn.Identity()
	require.True(t, ok)
	assert.Equal(t, "user-1", id.UserID)
	assert.Len(t, svc.RequestsFor(api.MethodAuthenticate), 1)
}

func TestAuthenticateRejected(t *testing.T) {
	svc := helpers.NewFakeService(t)
	svc.Handle(api.MethodAuthenticate, helpers.Reject("bad token"))
	svc.Handle(methodPing, helpers.Reply("pong"))

	conn := connect(t, svc, ws.WithToken("expired"))
	waitAuth(t, conn)

	_, ok := conn.Identity()
	assert.False(t, ok)
	assert.Equal(t, ws.StateOpen, conn.State())

	resp, err := conn.Send(context.Background(), methodPing, nil)
	require.NoError(t, err)
	assert.True(t, resp.IsOk())
}

func TestAuthenticateProviderError(t *testing.T) {
	svc := helpers.NewFakeService(t)
	conn := connect(t, svc, ws.WithCredentials(credential.Func(
		func(context.Context) (string, error) {
			return "", errors.New("vault unavailable")
		},
	)))
	waitAuth(t, conn)

	_, ok := conn.Identity()
	assert.False(t, ok)
	assert.Empty(t, svc.RequestsFor(api.MethodAuthenticate))
	assert.Equal(t, ws.StateOpen, conn.State())
}

func TestNoTokenSkipsAuthentication(t *testing.T) {
	svc := helpers.NewFakeService(t)
	conn := connect(t, svc)
	waitAuth(t, conn)

	assert.Empty(t, svc.Requests())
	_, ok := conn.Identity()
	assert.False(t, ok)
}

func TestOutOfOrderResponses(t *testing.T) {
	svc := helpers.NewFakeService(t)
	svc.Handle(methodPing, helpers.Hold())
	conn := connect(t, svc)

	type outcome struct {
		resp *api.Response
		err  error
	}
	results := make([]chan outcome, 2)
	for i := range results {
		results[i] = make(chan outcome, 1)
		go func() {
			resp, err := conn.Send(context.Background(), methodPing,
				map[string]int{"n": i},
			)
			results[i] <- outcome{resp, err}
		}()
	}

	reqs := svc.WaitRequests(t, methodPing, 2)
	byN := map[int]api.RequestID{}
	for _, r := range reqs {
		var p map[string]int
		require.NoError(t, json.Unmarshal(r.Params, &p))
		byN[p["n"]] = r.ID
	}
	assert.NotEqual(t, byN[0], byN[1])

	require.NoError(t, svc.Push(helpers.OkFrame(byN[1], "second")))
	require.NoError(t, svc.Push(helpers.OkFrame(byN[0], "first")))

	for i, want := range []string{"first", "second"} {
		select {
		case r := <-results[i]:
			require.NoError(t, r.err)
			var got string
			require.NoError(t, r.resp.DecodeOk(&got))
			assert.Equal(t, want, got)
			assert.Equal(t, byN[i], *r.resp.ID)
		case <-time.After(helpers.WaitTimeout):
			t.Fatalf("request %d was not resolved", i)
		}
	}
}

func TestUnroutableFramesDropped(t *testing.T) {
	svc := helpers.NewFakeService(t)
	svc.Handle(methodPing, helpers.Reply("pong"))
	conn := connect(t, svc)

	require.NoError(t, svc.Push(map[string]any{"Ok": "orphan"}))
	require.NoError(t, svc.Push(map[string]any{"id": 999, "Ok": "late"}))
	require.NoError(t, svc.Push(map[string]any{"stream_id": 55, "event": "X"}))
	require.NoError(t, svc.PushRaw(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, svc.PushRaw(websocket.BinaryMessage, []byte{1, 2}))

	resp, err := conn.Send(context.Background(), methodPing, nil)
	require.NoError(t, err)
	assert.True(t, resp.IsOk())
	assert.Equal(t, ws.StateOpen, conn.State())
}

func TestSendContextCancelled(t *testing.T) {
	svc := helpers.NewFakeService(t)
	svc.Handle(methodPing, helpers.Hold())
	conn := connect(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := conn.Send(ctx, methodPing, nil)
		done <- err
	}()
	svc.WaitRequests(t, methodPing, 1)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(helpers.WaitTimeout):
		t.Fatal("send did not return after cancel")
	}
}

func TestCloseRejectsPending(t *testing.T) {
	svc := helpers.NewFakeService(t)
	svc.Handle(methodPing, helpers.Hold())
	conn := connect(t, svc)

	done := make(chan error, 1)
	go func() {
		_, err := conn.Send(context.Background(), methodPing, nil)
		done <- err
	}()
	svc.WaitRequests(t, methodPing, 1)

	require.NoError(t, conn.Close())
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ws.ErrConnectionClosed)
	case <-time.After(helpers.WaitTimeout):
		t.Fatal("pending request was not rejected")
	}

	assert.Equal(t, ws.StateClosed, conn.State())
	assert.NoError(t, conn.Err())
	<-conn.Done()

	_, err := conn.Send(context.Background(), methodPing, nil)
	assert.ErrorIs(t, err, ws.ErrNotConnected)
}

func TestServerDropsSession(t *testing.T) {
	svc := helpers.NewFakeService(t)
	svc.Handle(methodPing, helpers.Hold())
	conn := connect(t, svc)

	done := make(chan error, 1)
	go func() {
		_, err := conn.Send(context.Background(), methodPing, nil)
		done <- err
	}()
	svc.WaitRequests(t, methodPing, 1)
	svc.DropSessions()

	select {
	case <-conn.Done():
	case <-time.After(helpers.WaitTimeout):
		t.Fatal("connection did not notice the drop")
	}
	assert.Error(t, conn.Err())
	assert.ErrorIs(t, <-done, ws.ErrConnectionClosed)
}

func TestCloseBeforeConnect(t *testing.T) {
	conn := ws.New("ws://127.0.0.1:1/ws")
	require.NoError(t, conn.Close())
	<-conn.Done()
	<-conn.Authenticated()
	assert.Equal(t, ws.StateClosed, conn.State())
}

func connect(t *testing.T, svc *helpers.FakeService, opts ...ws.Option) *ws.Conn {
	t.Helper()
	conn := ws.New(svc.WSURL(), opts...)
	require.NoError(t, conn.Connect(context.Background()))
	assert.Equal(t, ws.StateOpen, conn.State())
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitAuth(t *testing.T, conn *ws.Conn) {
	t.Helper()
	select {
	case <-conn.Authenticated():
	case <-time.After(helpers.WaitTimeout):
		t.Fatal("authentication did not finish")
	}
}
