// Package reqqueue serialises outgoing API calls: one request in flight at a
// time, with a fixed pause between calls so the backend's rate limits hold.
package reqqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	DefaultDelay   = 300 * time.Millisecond
	DefaultTimeout = 10 * time.Second

	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"
)

var ErrClosed = errors.New("reqqueue: queue closed")

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

type Request struct {
	Method      string
	Path        string
	Body        any
	Header      http.Header
	BearerToken string
	// Timeout bounds this request; zero uses the queue default.
	Timeout time.Duration
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type Option func(*Queue)

func WithBaseURL(u string) Option {
	return func(q *Queue) { q.baseURL = strings.TrimRight(u, "/") }
}

func WithDelay(d time.Duration) Option {
	return func(q *Queue) {
		if d >= 0 {
			q.delay = d
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// Queue runs enqueued requests one at a time in FIFO order.
type Queue struct {
	doer    Doer
	baseURL string
	delay   time.Duration
	timeout time.Duration
	logger  *slog.Logger

	mu         sync.Mutex
	items      []*task
	processing bool
	closed     bool

	closeOnce sync.Once
	closeCh   chan struct{}
}

type task struct {
	req Request
	p   *Pending
}

func New(doer Doer, opts ...Option) *Queue {
	if doer == nil {
		doer = http.DefaultClient
	}
	q := &Queue{
		doer:    doer,
		delay:   DefaultDelay,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends req and returns a handle that settles once it has run.
// A worker is started only when none is active.
func (q *Queue) Enqueue(req Request) *Pending {
	p := newPending()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		p.settle(nil, ErrClosed)
		return p
	}
	q.items = append(q.items, &task{req: req, p: p})
	start := !q.processing
	q.processing = true
	q.mu.Unlock()

	if start {
		go q.drain()
	}
	return p
}

// Len reports how many requests are waiting, not counting one in flight.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops the worker after its current request. Requests still waiting
// settle with ErrClosed.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		waiting := q.items
		q.items = nil
		q.mu.Unlock()

		close(q.closeCh)
		for _, t := range waiting {
			t.p.settle(nil, ErrClosed)
		}
	})
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if q.closed || len(q.items) == 0 {
			q.processing = false
			q.mu.Unlock()
			return
		}
		t := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()

		resp, err := q.execute(context.Background(), t.req)
		t.p.settle(resp, err)

		if q.delay > 0 {
			timer := time.NewTimer(q.delay)
			select {
			case <-timer.C:
			case <-q.closeCh:
				timer.Stop()
			}
		}
	}
}

// Do runs req right away on the caller's goroutine, outside the FIFO. It is
// meant for cancellable reads that should not wait behind queued writes.
func (q *Queue) Do(ctx context.Context, req Request) (*Response, error) {
	return q.execute(ctx, req)
}

func (q *Queue) execute(ctx context.Context, r Request) (*Response, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = q.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	url := q.baseURL + r.Path

	var body io.Reader
	if r.Body != nil {
		b, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if r.Body != nil && httpReq.Header.Get(headerContentType) == "" {
		httpReq.Header.Set(headerContentType, contentTypeJSON)
	}
	httpReq.Header.Set("Accept", contentTypeJSON)
	if r.BearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.BearerToken)
	}

	start := time.Now()
	resp, err := q.doer.Do(httpReq)
	if err != nil {
		q.logger.Debug("request failed", "method", method, "path", r.Path, "err", err)
		return nil, &TransportError{Method: method, URL: url, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Err: err}
	}
	q.logger.Debug("request done",
		"method", method,
		"path", r.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: raw}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, newHTTPError(resp, raw)
	}
	return out, nil
}

// Pending is the eventual outcome of an enqueued request.
type Pending struct {
	done chan struct{}
	resp *Response
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) settle(resp *Response, err error) {
	p.resp = resp
	p.err = err
	close(p.done)
}

// Done is closed once the request has settled.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the request settles or ctx ends. Giving up on the wait
// does not remove the request from the queue.
func (p *Pending) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-p.done:
		return p.resp, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
