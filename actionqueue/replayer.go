package actionqueue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Siddamnandas/Vibely-sub004/errors"
	"github.com/Siddamnandas/Vibely-sub004/pkg/retry"
)

// HTTPReplayer replays actions as HTTP POSTs against the app's sync
// endpoints. The action id travels as an idempotency key so a replay that
// succeeded remotely but failed locally (lost response) is safe to repeat.
type HTTPReplayer struct {
	client          *http.Client
	defaultEndpoint string
	endpoints       map[string]string // per-action-type overrides
	retryCfg        retry.Config
}

// NewHTTPReplayer creates a replayer. endpoints maps action types to their
// replay URL; types without an entry use defaultEndpoint.
func NewHTTPReplayer(defaultEndpoint string, endpoints map[string]string, timeout time.Duration) (*HTTPReplayer, error) {
	if defaultEndpoint == "" {
		return nil, errors.WrapInvalid(nil, "HTTPReplayer", "NewHTTPReplayer", "default endpoint cannot be empty")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPReplayer{
		client:          &http.Client{Timeout: timeout},
		defaultEndpoint: defaultEndpoint,
		endpoints:       endpoints,
		retryCfg:        retry.Quick(),
	}, nil
}

// Replay posts the action payload to its endpoint. Transient failures are
// retried with backoff inside this call; a 4xx response is not retried (the
// remote rejected the mutation). Returns nil only on a 2xx confirmation.
func (r *HTTPReplayer) Replay(ctx context.Context, action *QueuedAction) error {
	if action == nil {
		return errors.WrapInvalid(nil, "HTTPReplayer", "Replay", "action cannot be nil")
	}

	endpoint := r.defaultEndpoint
	if url, ok := r.endpoints[action.Type]; ok {
		endpoint = url
	}

	err := retry.Do(ctx, r.retryCfg, func() error {
		return r.post(ctx, endpoint, action)
	})
	if err != nil {
		return errors.WrapTransient(errors.ErrQueueReplayFailed, "HTTPReplayer", "Replay",
			fmt.Sprintf("action %d (%s): %v", action.ID, action.Type, err))
	}
	return nil
}

func (r *HTTPReplayer) post(ctx context.Context, endpoint string, action *QueuedAction) error {
	body := action.Payload
	if body == nil {
		body = []byte("{}")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return retry.NonRetryable(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Vibely-Action", action.Type)
	req.Header.Set("Idempotency-Key", strconv.FormatUint(action.ID, 10))

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	statusErr := fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return retry.NonRetryable(statusErr)
	}
	return statusErr
}
