package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	ErrNotRegistered = errors.New("instance not registered")
	ErrNoInstances   = errors.New("no live instances")
)

// Client talks to the registry's HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

func (c *Client) appURL(app string, rest ...string) string {
	u := c.baseURL + "/apps/" + url.PathEscape(app)
	for _, part := range rest {
		u += "/" + url.PathEscape(part)
	}
	return u
}

func (c *Client) Register(ctx context.Context, app string, inst Instance) (Instance, error) {
	data, err := json.Marshal(inst)
	if err != nil {
		return Instance{}, fmt.Errorf("marshal instance: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.appURL(app), bytes.NewReader(data))
	if err != nil {
		return Instance{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Instance{}, fmt.Errorf("register %s: %w", app, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Instance{}, fmt.Errorf("registry returned status %d on register", resp.StatusCode)
	}

	var registered Instance
	if err := json.NewDecoder(resp.Body).Decode(&registered); err != nil {
		return Instance{}, fmt.Errorf("decode registered instance: %w", err)
	}
	return registered, nil
}

func (c *Client) Renew(ctx context.Context, app, id string) error {
	return c.send(ctx, http.MethodPut, c.appURL(app, id))
}

func (c *Client) Cancel(ctx context.Context, app, id string) error {
	return c.send(ctx, http.MethodDelete, c.appURL(app, id))
}

func (c *Client) send(ctx context.Context, method, u string) error {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrNotRegistered
	default:
		return fmt.Errorf("registry returned status %d", resp.StatusCode)
	}
}

func (c *Client) Instances(ctx context.Context, app string) ([]Instance, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.appURL(app), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch instances of %s: %w", app, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoInstances
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	var instances []Instance
	if err := json.NewDecoder(resp.Body).Decode(&instances); err != nil {
		return nil, fmt.Errorf("decode instances: %w", err)
	}
	return instances, nil
}

// Registration keeps one instance registered for the lifetime of a process.
type Registration struct {
	client   *Client
	app      string
	instance Instance
	interval time.Duration
	logger   *slog.Logger
}

func NewRegistration(client *Client, app string, inst Instance, interval time.Duration, logger *slog.Logger) *Registration {
	if interval <= 0 {
		interval = DefaultRenewalInterval
	}
	return &Registration{client: client, app: app, instance: inst, interval: interval, logger: logger}
}

// Run registers, renews every interval and cancels the lease once ctx is
// done. A renewal answered with "not registered" triggers a new registration.
func (r *Registration) Run(ctx context.Context) error {
	if err := r.register(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cancelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.client.Cancel(cancelCtx, r.app, r.instance.ID); err != nil {
				r.logger.Warn("failed to cancel registration", "app", r.app, "error", err)
			}
			return nil
		case <-ticker.C:
			err := r.client.Renew(ctx, r.app, r.instance.ID)
			if errors.Is(err, ErrNotRegistered) {
				r.logger.Info("lease lost, registering again", "app", r.app)
				err = r.register(ctx)
			}
			if err != nil && ctx.Err() == nil {
				r.logger.Warn("failed to renew registration", "app", r.app, "error", err)
			}
		}
	}
}

func (r *Registration) register(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0

	registered, err := backoff.RetryNotifyWithData(func() (Instance, error) {
		return r.client.Register(ctx, r.app, r.instance)
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		r.logger.Warn("registry not reachable", "app", r.app, "error", err, "retry_in", next)
	})
	if err != nil {
		return fmt.Errorf("register %s: %w", r.app, err)
	}

	r.instance = registered
	r.logger.Info("registered with registry", "app", r.app, "instance_id", registered.ID)
	return nil
}
