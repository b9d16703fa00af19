// Package manager owns the snapshot (campaigns, event counters, user data)
// and coordinates evaluation, scheduling, and sync. All snapshot reads and
// writes are serialized behind a single mutex: concurrent ingests racing on
// the same counter row were a lost-update bug class in earlier SDKs, so the
// discipline here is deliberately single-writer.
package manager

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"notifly-go/internal/cache"
	"notifly-go/internal/counter"
	"notifly-go/internal/engine"
	"notifly-go/internal/model"
	"notifly-go/internal/observability"
	"notifly-go/internal/scheduler"
	"notifly-go/internal/syncer"
	"notifly-go/internal/userstate"
)

// State is the orchestrator lifecycle. The disabled flag is orthogonal:
// when set, every public operation is an info-logged no-op in any state.
type State int

const (
	StateUninitialized State = iota
	StateSyncing
	StateReady
)

var (
	ErrNotReady            = errors.New("notifly manager is not ready")
	ErrUnsupportedPlatform = errors.New("host platform is not supported")
)

// internalEventPrefix namespaces SDK-generated events apart from host
// application events.
const internalEventPrefix = "notifly__"

// minAndroidOSMajor is the lowest Android major version the message surface
// supports (Android 6.0).
const minAndroidOSMajor = 6

// StateFetcher is the sync/state collaborator boundary.
type StateFetcher interface {
	FetchState(ctx context.Context, externalUserID, deviceID string) (*syncer.State, error)
}

// ForegroundProvider reports whether the host application currently has a
// visible UI. Campaigns are only evaluated for foreground events; background
// events are still counted.
type ForegroundProvider interface {
	Foreground() bool
}

// Device identifies the host environment the SDK runs in.
type Device struct {
	Platform   string
	OSVersion  string
	AppVersion string
	DeviceID   string
}

// IngestParams is one event handed to IngestEvent by the push/UI layers.
type IngestParams struct {
	Name             string
	ExternalUserID   string
	Params           map[string]any
	IsInternal       bool
	SegmentationKeys []string
}

type Params struct {
	Fetcher    StateFetcher
	Scheduler  *scheduler.Scheduler
	Foreground ForegroundProvider
	Metrics    *observability.Metrics
	Device     Device
	Now        func() time.Time
}

type Manager struct {
	mu sync.Mutex

	state    State
	disabled bool

	campaigns cache.Snapshot[[]model.Campaign]
	counters  *counter.Store
	user      *userstate.UserData

	fetcher        StateFetcher
	sched          *scheduler.Scheduler
	fg             ForegroundProvider
	metrics        *observability.Metrics
	device         Device
	externalUserID string
	now            func() time.Time
}

func New(p Params) *Manager {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		counters: counter.NewStore(nil),
		user:     userstate.New(),
		fetcher:  p.Fetcher,
		sched:    p.Scheduler,
		fg:       p.Foreground,
		metrics:  p.Metrics,
		device:   p.Device,
		now:      now,
	}
}

// Initialize performs the first, non-merging sync and moves the manager to
// READY. Failures propagate to the caller: there is no snapshot to fall back
// on during the first load.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		log.Info().Msg("notifly disabled, skipping initialize")
		return nil
	}
	if m.state == StateReady {
		return nil
	}
	if !platformSupported(m.device.Platform, m.device.OSVersion) {
		return errors.Wrapf(ErrUnsupportedPlatform, "platform=%q os=%q", m.device.Platform, m.device.OSVersion)
	}

	m.state = StateSyncing
	if err := m.syncLocked(ctx, false); err != nil {
		m.state = StateUninitialized
		return errors.Wrap(err, "initial sync failed")
	}
	m.state = StateReady
	log.Info().Msg("notifly manager ready")
	return nil
}

// Refresh re-syncs the snapshot. Only valid once READY. When shouldMerge is
// set (anonymous -> registered transition), event counts are unioned and
// local user-property edits stay authoritative; otherwise the snapshot is
// replaced wholesale.
func (m *Manager) Refresh(ctx context.Context, shouldMerge bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		log.Info().Msg("notifly disabled, skipping refresh")
		return nil
	}
	if m.state != StateReady {
		return ErrNotReady
	}
	return m.syncLocked(ctx, shouldMerge)
}

// ChangeIdentity switches the external user id and re-syncs: merging when an
// anonymous user registers, replacing wholesale when the id is removed or
// swapped.
func (m *Manager) ChangeIdentity(ctx context.Context, externalUserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		log.Info().Msg("notifly disabled, skipping identity change")
		return nil
	}
	if m.state != StateReady {
		return ErrNotReady
	}
	shouldMerge := m.externalUserID == "" && externalUserID != ""
	m.externalUserID = externalUserID
	return m.syncLocked(ctx, shouldMerge)
}

func (m *Manager) syncLocked(ctx context.Context, shouldMerge bool) error {
	st, err := m.fetcher.FetchState(ctx, m.externalUserID, m.device.DeviceID)
	if err != nil {
		m.metrics.Syncs.WithLabelValues("error").Inc()
		return err
	}
	m.metrics.Syncs.WithLabelValues("ok").Inc()
	m.metrics.CampaignRejects.Add(float64(st.RejectedCampaigns))

	m.campaigns.Store(st.Campaigns)
	if shouldMerge {
		m.counters.Replace(counter.Merge(m.counters.Rows(), st.CounterRows))
		if err := m.user.Merge(st.User); err != nil {
			return err
		}
	} else {
		m.counters.Replace(st.CounterRows)
		m.user = st.User
	}
	log.Debug().
		Int("campaigns", len(st.Campaigns)).
		Int("rejected", st.RejectedCampaigns).
		Bool("merged", shouldMerge).
		Msg("snapshot installed")
	return nil
}

// IngestEvent is the event-tracking ingress. When the host is foregrounded,
// eligible campaigns are selected and scheduled BEFORE the event is recorded
// in the counter store, so the just-ingested event can never satisfy a
// COUNT_X condition against itself within the same call. The event is then
// recorded regardless of foreground state.
func (m *Manager) IngestEvent(_ context.Context, p IngestParams) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		log.Info().Str("event", p.Name).Msg("notifly disabled, dropping event")
		return
	}
	if m.state != StateReady {
		log.Debug().Str("event", p.Name).Msg("manager not ready, dropping event")
		return
	}

	name := p.Name
	if p.IsInternal {
		name = internalEventPrefix + name
	}
	params := model.ValuesOf(p.Params)
	now := m.now()

	if m.fg != nil && m.fg.Foreground() {
		selected := engine.Select(m.campaigns.Load(), engine.Input{
			EventName:      name,
			Params:         params,
			ExternalUserID: p.ExternalUserID,
			Now:            now,
		}, m.counters, m.user)
		for i := range selected {
			m.metrics.CampaignsMatched.Inc()
			m.sched.Schedule(selected[i])
		}
	}

	m.counters.Ingest(name, now, params, p.SegmentationKeys)
	m.metrics.EventsIngested.Inc()
}

// SetUserProperties merges properties into the in-memory map, last write
// wins per key.
func (m *Manager) SetUserProperties(props map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		log.Info().Msg("notifly disabled, dropping user properties")
		return nil
	}
	if m.state != StateReady {
		return ErrNotReady
	}
	m.user.SetProperties(model.ValuesOf(props))
	return nil
}

// SetHiddenUntil sets or overwrites the suppression entry for a campaign.
// A negative value hides it forever.
func (m *Manager) SetHiddenUntil(campaignID string, until int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		log.Info().Str("campaign_id", campaignID).Msg("notifly disabled, dropping hide-until update")
		return
	}
	m.user.SetHiddenUntil(campaignID, until)
}

// ClearUserState clears event counters and both user-property and
// suppression maps in place. Available in any lifecycle state; used when the
// user logs out.
func (m *Manager) ClearUserState() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		log.Info().Msg("notifly disabled, skipping user state clear")
		return
	}
	m.counters.Replace(nil)
	m.user.Clear()
	log.Info().Msg("user state cleared")
}

// SetDisabled toggles the kill switch.
func (m *Manager) SetDisabled(disabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabled = disabled
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Campaigns exposes the active snapshot for inspection.
func (m *Manager) Campaigns() []model.Campaign {
	return m.campaigns.Load()
}

// CounterRows exposes a copy of the counter rows for inspection.
func (m *Manager) CounterRows() []counter.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters.Rows()
}

// UserSnapshot exposes a shallow view of the current user data.
func (m *Manager) UserSnapshot() userstate.UserData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.user
}

func platformSupported(platform, osVersion string) bool {
	switch strings.ToLower(platform) {
	case "android":
		major, ok := majorVersion(osVersion)
		return ok && major >= minAndroidOSMajor
	case "ios", "web":
		return true
	default:
		return false
	}
}

func majorVersion(v string) (int, bool) {
	head, _, _ := strings.Cut(v, ".")
	major, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil {
		return 0, false
	}
	return major, true
}
