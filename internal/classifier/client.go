package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/Lora-Technologies/LoraGuard/internal/config"
	"github.com/Lora-Technologies/LoraGuard/internal/observability"
)

// ErrUnavailable is returned for every transient failure mode: network
// error, timeout, non-2xx status, unparseable body, or an open breaker.
// Callers must treat it as "no classification", never as "safe".
var ErrUnavailable = errors.New("classification service unavailable")

type Client struct {
	cfg        config.API
	httpClient *http.Client
	breaker    *breaker
	group      singleflight.Group
	logger     *log.Entry
}

func NewClient(cfg config.API, breakerCfg config.Breaker) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    newBreaker(breakerCfg.Enabled, breakerCfg.FailureThreshold, breakerCfg.ResetWindow),
		logger:     log.WithField("object", "Classifier"),
	}
}

// Available reports whether the next call would attempt the network.
func (c *Client) Available() bool {
	return !c.breaker.Open()
}

// Classify submits text for moderation. Concurrent calls for the same
// normalized text are coalesced into one upstream request.
func (c *Client) Classify(ctx context.Context, text string) (*Result, error) {
	if c.breaker.Open() {
		c.logger.Debug("circuit open, short-circuiting classification")
		return nil, ErrUnavailable
	}

	value, err, _ := c.group.Do(Normalize(text), func() (any, error) {
		return c.doClassify(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return value.(*Result), nil
}

func (c *Client) doClassify(ctx context.Context, text string) (*Result, error) {
	started := time.Now()
	requestID := uuid.NewRandom().String()
	entry := c.logger.WithField("request_id", requestID)

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(Request{
		Input:     text,
		Model:     c.cfg.Model,
		Threshold: c.cfg.Threshold,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal moderation request")
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.BaseURL+"/moderations", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build moderation request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.failure(entry, started, errors.Wrap(err, "moderation call"))
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, c.failure(entry, started, fmt.Errorf("unexpected status code %d", resp.StatusCode))
	}

	var parsed Response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, c.failure(entry, started, errors.Wrap(err, "decode moderation response"))
	}
	if len(parsed.Results) == 0 {
		return nil, c.failure(entry, started, errors.New("moderation response has no results"))
	}

	c.breaker.RecordSuccess()
	observability.RecordAPICall(true, time.Since(started))
	if parsed.Warning != "" {
		entry.WithField("warning", parsed.Warning).Warn("moderation service warning")
	}

	result := parsed.Results[0]
	return &result, nil
}

func (c *Client) failure(entry *log.Entry, started time.Time, err error) error {
	c.breaker.RecordFailure()
	observability.RecordAPICall(false, time.Since(started))
	entry.WithField("error", err.Error()).Warn("classification failed")
	return ErrUnavailable
}
