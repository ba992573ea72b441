package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"time"

	logx "speechspy/pkg/logx"
)

// maxRequestBytes bounds one request line.
const maxRequestBytes = 1 << 20

const defaultConnTimeout = 10 * time.Second

// Handler processes one validated request.
type Handler interface {
	Handle(context.Context, Request) Response
}

type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

type serveOptions struct {
	log         logx.Logger
	connTimeout time.Duration
}

type ServeOption func(*serveOptions)

// WithLogger logs rejected requests and handler panics.
func WithLogger(log logx.Logger) ServeOption {
	return func(o *serveOptions) { o.log = log }
}

// WithConnTimeout bounds one connection from accept to response.
func WithConnTimeout(d time.Duration) ServeOption {
	return func(o *serveOptions) {
		if d > 0 {
			o.connTimeout = d
		}
	}
}

// Serve accepts clients until ctx is canceled or the listener is closed.
// Requests that fail Validate are answered without calling handler.
func Serve(ctx context.Context, listener net.Listener, handler Handler, opts ...ServeOption) error {
	o := serveOptions{log: logx.Nop(), connTimeout: defaultConnTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	var wg sync.WaitGroup

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			return fmt.Errorf("accept ipc connection: %w", err)
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer c.Close()
			_ = c.SetDeadline(time.Now().Add(o.connTimeout))
			_ = json.NewEncoder(c).Encode(serveOne(ctx, c, handler, o.log))
		}(conn)
	}
}

func serveOne(ctx context.Context, c net.Conn, handler Handler, log logx.Logger) (resp Response) {
	reader := bufio.NewReader(io.LimitReader(c, maxRequestBytes))
	line, err := reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return Response{Error: fmt.Sprintf("read request: %v", err)}
	}
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Response{Error: fmt.Sprintf("decode request: %v", err)}
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		log.Debug("ipc request rejected", logx.String("command", req.Command), logx.Err(err))
		return Response{Error: err.Error()}
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("ipc handler panicked",
				logx.String("command", req.Command),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
			resp = Response{Error: fmt.Sprintf("%s: internal error", req.Command)}
		}
	}()
	return handler.Handle(ctx, req)
}
