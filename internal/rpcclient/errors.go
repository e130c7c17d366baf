package rpcclient

import (
	"context"
	"errors"
	"net"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// ErrRPCTransient wraps a network/5xx/timeout error: the call site should
// retry with backoff.
var ErrRPCTransient = errors.New("rpcclient: transient RPC error")

// ErrRPCPermanent wraps a malformed JSON-RPC error with a non-transient
// code, or an HTTP 4xx other than 429: the current block range fails and
// the cursor must not advance past it.
var ErrRPCPermanent = errors.New("rpcclient: permanent RPC error")

// ErrMethodNotFound is a narrower permanent error used by method probing
// (spec.md §9 Alchemy method detection).
var ErrMethodNotFound = errors.New("rpcclient: method not found")

const jsonRPCMethodNotFound = -32601

// throttleCodes are JSON-RPC error codes a handful of providers
// (Alchemy, Infura) use to signal "back off and retry", distinct from
// genuine application errors.
var throttleCodes = map[int]bool{
	-32005: true, // Alchemy/Infura: request rate limited
	-32016: true,
}

// classify turns a raw error returned by the go-ethereum RPC transport
// into one of the category sentinels from spec.md §7, wrapping the
// original error so callers can still errors.Is/As the cause.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return wrap(ErrRPCTransient, err)
	}

	var httpErr gethrpc.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == 429 || httpErr.StatusCode >= 500 {
			return wrap(ErrRPCTransient, err)
		}
		return wrap(ErrRPCPermanent, err)
	}

	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) {
		code := rpcErr.ErrorCode()
		if code == jsonRPCMethodNotFound {
			return wrap(ErrMethodNotFound, err)
		}
		if throttleCodes[code] {
			return wrap(ErrRPCTransient, err)
		}
		return wrap(ErrRPCPermanent, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return wrap(ErrRPCTransient, err)
	}

	// Unrecognised errors (connection refused, EOF, DNS failures) are
	// treated as transient: the endpoint may simply be flapping.
	return wrap(ErrRPCTransient, err)
}

type classified struct {
	category error
	cause    error
}

func wrap(category, cause error) error {
	return &classified{category: category, cause: cause}
}

func (c *classified) Error() string {
	return c.category.Error() + ": " + c.cause.Error()
}

func (c *classified) Unwrap() []error {
	return []error{c.category, c.cause}
}
