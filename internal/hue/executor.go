package hue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Request is one bridge call.
type Request struct {
	Method string
	Path   string // relative to the API base, e.g. "lights/3/state"
	Body   any
	Class  Class
}

func (r Request) op() string {
	return r.Method + " " + r.Path
}

// RetryPolicy bounds the executor's retry loop.
type RetryPolicy struct {
	MaxAttempts      int
	BaseDelay        time.Duration
	OperationTimeout time.Duration
}

// DefaultRetryPolicy returns 3 attempts, 0.5s base delay, 30s deadline.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:      3,
		BaseDelay:        500 * time.Millisecond,
		OperationTimeout: 30 * time.Second,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.OperationTimeout <= 0 {
		p.OperationTimeout = d.OperationTimeout
	}
	return p
}

// Delay returns the wait before attempt k (k >= 2): BaseDelay * 2^(k-2).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 2 {
		return 0
	}
	return p.BaseDelay << (attempt - 2)
}

type execState int

const (
	stateAttempting execState = iota
	stateBackoff
	stateSucceeded
	stateFailedTerminal
)

type decision int

const (
	decideSucceed decision = iota
	decideRetry
	decideFail
)

// decide maps the outcome of attempt number `attempt` to the next step.
// Non-retryable classifications fail immediately.
func decide(err error, attempt int, p RetryPolicy) decision {
	if err == nil {
		return decideSucceed
	}
	var he *Error
	if !errors.As(err, &he) || !he.Retryable {
		return decideFail
	}
	if attempt >= p.MaxAttempts {
		return decideFail
	}
	return decideRetry
}

// Executor is the only component that talks HTTP to the bridge. Every call
// takes a rate token of its class, goes through the shared pool and is
// retried on transient failures.
type Executor struct {
	httpClient *http.Client
	limiter    *Limiter
	baseURL    string
	policy     RetryPolicy
	clock      Clock
}

// NewExecutor creates an executor for the API at baseURL.
func NewExecutor(httpClient *http.Client, limiter *Limiter, baseURL string, policy RetryPolicy, clock Clock) *Executor {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Executor{
		httpClient: httpClient,
		limiter:    limiter,
		baseURL:    strings.TrimRight(baseURL, "/"),
		policy:     policy.withDefaults(),
		clock:      clock,
	}
}

// BaseURL builds the v1 API base for a bridge host and credential.
func BaseURL(bridge, token string) string {
	if strings.HasPrefix(bridge, "http://") || strings.HasPrefix(bridge, "https://") {
		return fmt.Sprintf("%s/api/%s", strings.TrimRight(bridge, "/"), token)
	}
	return fmt.Sprintf("http://%s/api/%s", bridge, token)
}

// Policy returns the retry policy in effect.
func (e *Executor) Policy() RetryPolicy {
	return e.policy
}

// Execute performs req and returns the raw JSON payload of a successful
// response. Failures are *Error values carrying the terminal classification.
func (e *Executor) Execute(ctx context.Context, req Request) (json.RawMessage, error) {
	op := req.op()

	var body []byte
	if req.Body != nil {
		var err error
		body, err = json.Marshal(req.Body)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Op: op, Message: "failed to encode request body", Err: err}
		}
	}

	deadline := e.clock.Now().Add(e.policy.OperationTimeout)
	ctx, cancel := context.WithTimeout(ctx, e.policy.OperationTimeout)
	defer cancel()

	var (
		state   = stateAttempting
		attempt = 1
		payload json.RawMessage
		lastErr error
	)

	for {
		switch state {
		case stateAttempting:
			payload, lastErr = e.attempt(ctx, op, req, body)
			switch decide(lastErr, attempt, e.policy) {
			case decideSucceed:
				state = stateSucceeded
			case decideRetry:
				state = stateBackoff
			default:
				state = stateFailedTerminal
			}

		case stateBackoff:
			delay := e.policy.Delay(attempt + 1)
			if e.clock.Now().Add(delay).After(deadline) {
				lastErr = &Error{
					Kind:    KindTimeout,
					Op:      op,
					Message: fmt.Sprintf("operation deadline of %s exceeded after %d attempts", e.policy.OperationTimeout, attempt),
					Err:     lastErr,
				}
				state = stateFailedTerminal
				continue
			}

			log.Warn().
				Err(lastErr).
				Str("op", op).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("Bridge call failed, retrying")

			if err := e.clock.Sleep(ctx, delay); err != nil {
				lastErr = contextError(op, err)
				state = stateFailedTerminal
				continue
			}
			attempt++
			state = stateAttempting

		case stateSucceeded:
			return payload, nil

		case stateFailedTerminal:
			return nil, lastErr
		}
	}
}

func (e *Executor) attempt(ctx context.Context, op string, req Request, body []byte) (json.RawMessage, error) {
	release, err := e.limiter.Acquire(ctx, req.Class)
	if err != nil {
		return nil, contextError(op, err)
	}
	defer release()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, e.baseURL+"/"+strings.TrimLeft(req.Path, "/"), reader)
	if err != nil {
		return nil, &Error{Kind: KindConnection, Op: op, Message: "invalid bridge request", Err: err}
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ctx, op, err)
	}

	return classifyResponse(op, resp.StatusCode, data)
}

// contextError converts a context failure into the taxonomy.
func contextError(op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Message: "operation deadline exceeded", Err: err}
	}
	return &Error{Kind: KindConnection, Op: op, Message: "request cancelled", Err: err}
}

func transportError(ctx context.Context, op string, err error) *Error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return contextError(op, ctxErr)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindConnection, Op: op, Message: "request timed out", Retryable: true, Err: err}
	}
	return &Error{Kind: KindConnection, Op: op, Message: "request failed: " + err.Error(), Retryable: true, Err: err}
}

type envelopeError struct {
	Type        int    `json:"type"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

// classifyResponse maps an HTTP status and body to a payload or an *Error.
func classifyResponse(op string, status int, data []byte) (json.RawMessage, error) {
	switch {
	case status == http.StatusNotFound:
		return nil, &Error{Kind: KindValidation, Op: op, StatusCode: status, Message: "resource not found"}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, &Error{Kind: KindConnection, Op: op, StatusCode: status, Message: "authentication failed"}
	case status == http.StatusTooManyRequests:
		return nil, &Error{Kind: KindRateLimit, Op: op, StatusCode: status, Message: "bridge rate limit exceeded", Retryable: true}
	case status >= 500:
		return nil, &Error{Kind: KindConnection, Op: op, StatusCode: status, Message: fmt.Sprintf("bridge returned status %d", status), Retryable: true}
	case status < 200 || status >= 300:
		return nil, &Error{Kind: KindBridge, Op: op, StatusCode: status, Message: fmt.Sprintf("unexpected status %d: %s", status, bytes.TrimSpace(data))}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if !json.Valid(trimmed) {
		return nil, &Error{Kind: KindBridge, Op: op, StatusCode: status, Message: "invalid JSON in bridge response"}
	}

	if trimmed[0] == '[' {
		var items []map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err == nil && len(items) > 0 {
			if raw, ok := items[0]["error"]; ok {
				var be envelopeError
				if err := json.Unmarshal(raw, &be); err != nil {
					be.Description = "Unknown error"
				}
				return nil, bridgeError(op, be.Type, be.Address, be.Description)
			}
		}
	}

	return json.RawMessage(trimmed), nil
}
