// Package notifly is the public surface of the Notifly in-app message SDK.
// A Client is embedded in a host application process: the host reports
// events and identity, supplies a renderer and a foreground signal, and the
// SDK decides which campaigns to display and when, entirely against a
// locally synced snapshot.
package notifly

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"notifly-go/internal/config"
	"notifly-go/internal/manager"
	"notifly-go/internal/observability"
	"notifly-go/internal/scheduler"
	"notifly-go/internal/storage"
	"notifly-go/internal/syncer"
)

// Config is re-exported so hosts don't import internal packages.
type Config = config.Config

// LoadConfig reads notifly.yaml / environment configuration.
func LoadConfig() Config { return config.Load() }

var (
	ErrMissingProjectID = errors.New("notifly: project id is required")
	ErrMissingBaseURL   = errors.New("notifly: project base url is required")
	ErrMissingRenderer  = errors.New("notifly: a renderer is required")
	ErrClosed           = errors.New("notifly: client is closed")
)

const (
	deviceIDKey = "notifly.device_id"

	refreshTimeout = 30 * time.Second
)

// Renderer is the host-side message surface; see scheduler.Renderer.
type Renderer = scheduler.Renderer

// ForegroundProvider reports host UI visibility; see manager.ForegroundProvider.
type ForegroundProvider = manager.ForegroundProvider

// CredentialProvider supplies sync auth tokens; see syncer.CredentialProvider.
type CredentialProvider = syncer.CredentialProvider

// Options carries the host-supplied collaborators.
type Options struct {
	Renderer    Renderer
	Foreground  ForegroundProvider
	Credentials CredentialProvider

	// Registerer receives the SDK's metrics; nil leaves them unregistered.
	Registerer prometheus.Registerer

	// Fetcher overrides the HTTP sync client; tests use this.
	Fetcher manager.StateFetcher

	// Now overrides the clock; tests use this.
	Now func() time.Time
}

// command is one deferred public operation. Commands issued before the
// client is READY queue in arrival order and drain FIFO once it is; an
// identity command drains only up to and including itself, because it
// invalidates the assumptions behind anything queued after it until a fresh
// sync completes.
type command struct {
	name     string
	identity bool
	run      func(ctx context.Context)
}

type Client struct {
	cfg   Config
	kv    *storage.KV
	sched *scheduler.Scheduler
	mgr   *manager.Manager

	refresher *cron.Cron

	mu             sync.Mutex
	ready          bool
	closed         bool
	pending        []command
	externalUserID string
	lastRefresh    time.Time
}

// New wires a Client from configuration and host collaborators. The device
// id is minted once and persisted across restarts.
func New(cfg Config, opts Options) (*Client, error) {
	if cfg.Project.ID == "" {
		return nil, ErrMissingProjectID
	}
	if cfg.Project.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if opts.Renderer == nil {
		return nil, ErrMissingRenderer
	}
	config.SetupLogging(cfg.Client.LogLevel)

	kv, err := storage.Open(cfg.Client.StorePath)
	if err != nil {
		return nil, err
	}
	deviceID, err := persistentDeviceID(kv)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	metrics := observability.New(opts.Registerer)
	sched := scheduler.New(opts.Renderer, metrics)

	fetcher := opts.Fetcher
	if fetcher == nil {
		creds := newCachingCredentials(opts.Credentials, kv)
		fetcher = syncer.New(cfg.Project.BaseURL, cfg.Project.ID, creds)
	}

	mgr := manager.New(manager.Params{
		Fetcher:    fetcher,
		Scheduler:  sched,
		Foreground: opts.Foreground,
		Metrics:    metrics,
		Device: manager.Device{
			Platform:   cfg.Device.Platform,
			OSVersion:  cfg.Device.OSVersion,
			AppVersion: cfg.Device.AppVersion,
			DeviceID:   deviceID,
		},
		Now: opts.Now,
	})
	mgr.SetDisabled(cfg.Client.Disabled)

	c := &Client{cfg: cfg, kv: kv, sched: sched, mgr: mgr}
	return c, nil
}

func persistentDeviceID(kv *storage.KV) (string, error) {
	id, ok, err := kv.GetString(deviceIDKey)
	if err != nil {
		return "", err
	}
	if ok {
		return id, nil
	}
	id = uuid.NewString()
	if err := kv.PutString(deviceIDKey, id); err != nil {
		return "", err
	}
	return id, nil
}

// Initialize performs the first sync and drains any commands queued while
// the client was warming up. Errors from the initial sync propagate.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	if err := c.mgr.Initialize(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()

	c.startRefresher()
	c.drain(ctx)
	return nil
}

// TrackEvent reports a host application event. Runs immediately when READY,
// queues otherwise. Segmentation keys sub-partition the event's counts by
// the named parameter's value.
func (c *Client) TrackEvent(ctx context.Context, name string, params map[string]any, segmentationKeys ...string) {
	c.submit(ctx, command{
		name: "track_event",
		run: func(ctx context.Context) {
			c.mgr.IngestEvent(ctx, manager.IngestParams{
				Name:             name,
				ExternalUserID:   c.currentUserID(),
				Params:           params,
				SegmentationKeys: segmentationKeys,
			})
		},
	})
}

// TrackInternalEvent reports an SDK-generated event; its name is prefixed so
// it can never collide with host events.
func (c *Client) TrackInternalEvent(ctx context.Context, name string, params map[string]any) {
	c.submit(ctx, command{
		name: "track_internal_event",
		run: func(ctx context.Context) {
			c.mgr.IngestEvent(ctx, manager.IngestParams{
				Name:           name,
				ExternalUserID: c.currentUserID(),
				Params:         params,
				IsInternal:     true,
			})
		},
	})
}

// SetUserProperties merges properties into the user snapshot, last write
// wins per key.
func (c *Client) SetUserProperties(ctx context.Context, props map[string]any) {
	c.submit(ctx, command{
		name: "set_user_properties",
		run: func(context.Context) {
			if err := c.mgr.SetUserProperties(props); err != nil {
				log.Error().Err(err).Msg("failed to set user properties")
			}
		},
	})
}

// SetExternalUserID changes the signed-in identity and re-syncs. When an
// anonymous user registers, local state is merged into the remote snapshot;
// removing or swapping the id replaces the snapshot wholesale.
func (c *Client) SetExternalUserID(ctx context.Context, externalUserID string) {
	c.submit(ctx, command{
		name:     "set_external_user_id",
		identity: true,
		run: func(ctx context.Context) {
			c.mu.Lock()
			c.ready = false
			c.externalUserID = externalUserID
			c.mu.Unlock()

			if err := c.mgr.ChangeIdentity(ctx, externalUserID); err != nil {
				log.Error().Err(err).Msg("identity change sync failed")
			}

			c.mu.Lock()
			c.ready = true
			c.mu.Unlock()
			c.drain(ctx)
		},
	})
}

// HideCampaignUntil suppresses a campaign until the given epoch second; a
// negative value hides it forever.
func (c *Client) HideCampaignUntil(ctx context.Context, campaignID string, until int64) {
	c.submit(ctx, command{
		name: "hide_campaign_until",
		run: func(context.Context) {
			c.mgr.SetHiddenUntil(campaignID, until)
		},
	})
}

// Refresh forces a snapshot re-sync. Merging keeps local counter and
// user-property edits; non-merging replaces the snapshot wholesale.
func (c *Client) Refresh(ctx context.Context, shouldMerge bool) error {
	return c.mgr.Refresh(ctx, shouldMerge)
}

// MessageClosed must be called by the host when the rendered message surface
// is dismissed; it releases the single-active-message gate.
func (c *Client) MessageClosed() {
	c.sched.MessageClosed()
}

// ClearUserState drops event counters, user properties, and suppression
// state. Available in any lifecycle state (used on logout).
func (c *Client) ClearUserState() {
	c.mgr.ClearUserState()
}

// Disable turns every SDK operation into a logged no-op; Enable reverts it.
func (c *Client) Disable() { c.mgr.SetDisabled(true) }
func (c *Client) Enable()  { c.mgr.SetDisabled(false) }

// Close stops the periodic refresher, cancels pending delayed displays, and
// closes the persistent store.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.ready = false
	refresher := c.refresher
	c.refresher = nil
	c.mu.Unlock()

	if refresher != nil {
		refresher.Stop()
	}
	c.sched.Close()
	return c.kv.Close()
}

func (c *Client) currentUserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.externalUserID
}

// submit runs the command when READY, otherwise appends it to the arrival-
// ordered queue drained on the next READY transition.
func (c *Client) submit(ctx context.Context, cmd command) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if !c.ready {
		c.pending = append(c.pending, cmd)
		c.mu.Unlock()
		log.Debug().Str("command", cmd.name).Msg("client not ready, command queued")
		return
	}
	c.mu.Unlock()
	cmd.run(ctx)
}

// drain executes queued commands FIFO. An identity command ends the pass:
// its own run re-enters drain once its sync has completed, so commands
// queued after it wait for that subsequent state transition.
func (c *Client) drain(ctx context.Context) {
	for {
		c.mu.Lock()
		if c.closed || !c.ready || len(c.pending) == 0 {
			c.mu.Unlock()
			return
		}
		cmd := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()

		cmd.run(ctx)
		if cmd.identity {
			return
		}
	}
}

func (c *Client) startRefresher() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refresher != nil || c.closed {
		return
	}
	c.refresher = cron.New()
	spec := fmt.Sprintf("@every %ds", c.cfg.Client.RefreshSeconds)
	if _, err := c.refresher.AddFunc(spec, c.periodicRefresh); err != nil {
		log.Error().Err(err).Str("spec", spec).Msg("failed to schedule periodic refresh")
		c.refresher = nil
		return
	}
	c.refresher.Start()
}

func (c *Client) periodicRefresh() {
	c.mu.Lock()
	// Debounce: never refresh more often than the configured floor, no
	// matter how the schedule and manual refreshes interleave.
	if !c.ready || time.Since(c.lastRefresh) < c.cfg.MinRefreshInterval() {
		c.mu.Unlock()
		return
	}
	c.lastRefresh = time.Now()
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if err := c.mgr.Refresh(ctx, true); err != nil {
		log.Error().Err(err).Msg("periodic refresh failed")
	}
}
