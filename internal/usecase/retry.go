package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"campaign-assistant/internal/domain"
)

const (
	maxTransportRetries = 3
	initialBackoff      = time.Second
)

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// credentialFaulter is implemented by transport errors raised before any
// request is sent because the provider key is unusable.
type credentialFaulter interface {
	CredentialFault() bool
}

// sleepFunc waits for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retrier submits chat requests, retrying rate-limited and network-level
// failures with exponential backoff. It carries no per-call state.
type retrier struct {
	transport ChatTransport
	sleep     sleepFunc
	logger    *slog.Logger
}

func (r retrier) send(ctx context.Context, req domain.SuggestionRequest) (domain.ProviderResponse, error) {
	attempt := 0
	delay := initialBackoff
	for {
		resp, err := r.transport.SubmitChat(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.ProviderResponse{}, newError(ErrorUpstream, "provider_cancelled", ctxErr)
		}

		if isCredentialFault(err) {
			return domain.ProviderResponse{}, newError(ErrorUnauthorized, "provider_credentials", err)
		}

		status, hasStatus := upstreamStatusCode(err)
		if hasStatus && status == http.StatusUnauthorized {
			return domain.ProviderResponse{}, newError(ErrorUnauthorized, "provider_unauthorized", err)
		}

		transient := !hasStatus || status == http.StatusTooManyRequests
		if !transient {
			return domain.ProviderResponse{}, newError(ErrorUpstream, "provider_error", err)
		}
		if attempt >= maxTransportRetries {
			if hasStatus {
				return domain.ProviderResponse{}, newError(ErrorRateLimited, "provider_rate_limited", err)
			}
			return domain.ProviderResponse{}, newError(ErrorUpstream, "provider_unreachable", err)
		}

		r.logger.DebugContext(ctx, "retrying provider call", "attempt", attempt+1, "delay", delay, "err", err)
		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			return domain.ProviderResponse{}, newError(ErrorUpstream, "provider_cancelled", sleepErr)
		}
		delay *= 2
		attempt++
	}
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

func isCredentialFault(err error) bool {
	var cf credentialFaulter
	return errors.As(err, &cf) && cf.CredentialFault()
}
