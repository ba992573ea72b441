package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"speechspy/internal/speech"
)

func serve(t *testing.T, path string, h Handler) (cancel func()) {
	t.Helper()
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, listener, h) }()
	return func() {
		stop()
		require.NoError(t, <-done)
	}
}

func TestSendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speechspy.sock")
	var got Request
	stop := serve(t, path, HandlerFunc(func(_ context.Context, req Request) Response {
		got = req
		return Response{OK: true, State: "paused", Message: "Stopped logging local speech."}
	}))
	defer stop()

	resp, err := Send(context.Background(), path, Request{Command: CmdToggle}, time.Second)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Equal(t, "paused", resp.State)
	require.Equal(t, CmdToggle, got.Command)
}

func TestSpeakRequestCarriesSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speechspy.sock")
	seqs := make(chan speech.Sequence, 1)
	stop := serve(t, path, HandlerFunc(func(_ context.Context, req Request) Response {
		seq, err := ToSequence(req.Sequence)
		if err != nil {
			return Response{Error: err.Error()}
		}
		seqs <- seq
		return Response{OK: true}
	}))
	defer stop()

	want := speech.Sequence{speech.Text("Hello"), speech.Command{Kind: speech.CommandPause, Value: "200"}, speech.Text("world")}
	_, err := Send(context.Background(), path, Request{Command: CmdSpeak, Sequence: FromSequence(want)}, time.Second)
	require.NoError(t, err)
	require.Equal(t, want, <-seqs)
}

func TestWireFormat(t *testing.T) {
	var req Request
	line := `{"command":"speak","sequence":[{"text":"Hello"},{"command":"pause","value":"200"},{"text":"world"}]}`
	require.NoError(t, json.Unmarshal([]byte(line), &req))
	seq, err := ToSequence(req.Sequence)
	require.NoError(t, err)
	require.Equal(t, speech.Sequence{
		speech.Text("Hello"),
		speech.Command{Kind: speech.CommandPause, Value: "200"},
		speech.Text("world"),
	}, seq)

	ttl := 2
	b, err := json.Marshal(Response{OK: true, State: "active", Target: "224.1.1.1:5004", TTL: &ttl})
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true,"state":"active","target":"224.1.1.1:5004","ttl":2}`, string(b))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"toggle", Request{Command: CmdToggle}, ""},
		{"mixed case command", Request{Command: " Status "}, ""},
		{"unknown command", Request{Command: "explode"}, "unknown command"},
		{"empty speak", Request{Command: CmdSpeak}, "empty sequence"},
		{"unknown fragment kind", Request{Command: CmdSpeak, Sequence: []Fragment{{Text: "a"}, {Command: "shout"}}}, `unknown command kind "shout"`},
		{"bad priority", Request{Command: CmdSpeak, Sequence: []Fragment{{Text: "a"}}, Priority: "urgent"}, "unknown priority"},
		{"priority ok", Request{Command: CmdSpeak, Sequence: []Fragment{{Text: "a"}}, Priority: "Now"}, ""},
		{"read settings", Request{Command: CmdSettings}, ""},
		{"unknown setting", Request{Command: CmdSettings, Settings: map[string]string{"port": "1", "volume": "3"}}, "unknown setting(s): volume"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.want == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrBadRequest)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestServeValidatesBeforeHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speechspy.sock")
	var calls atomic.Int32
	got := make(chan string, 1)
	stop := serve(t, path, HandlerFunc(func(_ context.Context, req Request) Response {
		calls.Add(1)
		got <- req.Command
		return Response{OK: true}
	}))
	defer stop()

	resp, err := Send(context.Background(), path, Request{Command: CmdSpeak, Sequence: []Fragment{{Command: "shout"}}}, time.Second)
	require.NoError(t, err)
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command kind")
	require.Error(t, resp.Err())
	require.Zero(t, calls.Load())

	resp, err = Send(context.Background(), path, Request{Command: "TOGGLE"}, time.Second)
	require.NoError(t, err)
	require.NoError(t, resp.Err())
	require.EqualValues(t, 1, calls.Load())
	require.Equal(t, CmdToggle, <-got)
}

func TestServeRecoversHandlerPanic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speechspy.sock")
	stop := serve(t, path, HandlerFunc(func(context.Context, Request) Response { panic("boom") }))
	defer stop()

	resp, err := Send(context.Background(), path, Request{Command: CmdStatus}, time.Second)
	require.NoError(t, err)
	require.False(t, resp.OK)
	require.Equal(t, "status: internal error", resp.Error)

	// the server keeps accepting
	_, err = Send(context.Background(), path, Request{Command: CmdStatus}, time.Second)
	require.NoError(t, err)
}

func TestServeRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speechspy.sock")
	stop := serve(t, path, HandlerFunc(func(context.Context, Request) Response { return Response{OK: true} }))
	defer stop()

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("not-json\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)
	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "decode request")
}

func TestSendDecodeResponseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speechspy.sock")
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = bufio.NewReader(conn).ReadBytes('\n')
		_, _ = conn.Write([]byte("not-json\n"))
	}()

	_, err = Send(context.Background(), path, Request{Command: CmdStatus}, time.Second)
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestProbe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speechspy.sock")
	stop := serve(t, path, HandlerFunc(func(context.Context, Request) Response { return Response{OK: true} }))

	alive, err := Probe(context.Background(), path, time.Second)
	require.NoError(t, err)
	require.True(t, alive)
	stop()

	alive, err = Probe(context.Background(), path, 100*time.Millisecond)
	require.NoError(t, err)
	require.False(t, alive)
}

func TestAcquireRecoversStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speechspy.sock")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))

	listener, err := Acquire(context.Background(), path, 50*time.Millisecond, 2)
	require.NoError(t, err)
	require.NoError(t, listener.Close())
}

func TestAcquireRefusesLiveOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speechspy.sock")
	stop := serve(t, path, HandlerFunc(func(context.Context, Request) Response { return Response{OK: true} }))
	defer stop()

	_, err := Acquire(context.Background(), path, 200*time.Millisecond, 1)
	require.True(t, errors.Is(err, ErrAlreadyRunning))
}
