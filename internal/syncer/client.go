// Package syncer fetches the remote state snapshot (campaigns, event
// counters, user data) and decodes it into the core model, applying the
// best-effort campaign parse policy.
package syncer

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"notifly-go/internal/counter"
	"notifly-go/internal/model"
	"notifly-go/internal/userstate"
)

// ErrUnauthorized marks a sync rejected for credentials; it is the only
// retryable failure class.
var ErrUnauthorized = errors.New("sync state request unauthorized")

const (
	// maxAuthAttempts bounds how often a sync is retried after invalidating
	// credentials on a 401.
	maxAuthAttempts = 3
	authRetryDelay  = 200 * time.Millisecond
	requestTimeout  = 15 * time.Second
)

// CredentialProvider supplies the bearer token for sync calls. Invalidate is
// called after a 401 so the next Token call fetches a fresh one.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// State is one decoded snapshot, ready for the orchestrator to install.
type State struct {
	Campaigns         []model.Campaign
	RejectedCampaigns int
	CounterRows       []counter.Row
	User              *userstate.UserData
}

type Client struct {
	http      *req.Client
	baseURL   string
	projectID string
	creds     CredentialProvider
}

func New(baseURL, projectID string, creds CredentialProvider) *Client {
	httpClient := req.C().
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal).
		SetTimeout(requestTimeout)
	return &Client{
		http:      httpClient,
		baseURL:   baseURL,
		projectID: projectID,
		creds:     creds,
	}
}

// Wire shapes.

type rawState struct {
	Campaigns   []json.RawMessage `json:"campaigns"`
	EventCounts []rawCount        `json:"event_intermediate_counts"`
	UserData    *rawUser          `json:"user_data"`
}

type rawCount struct {
	Date         string         `json:"date"`
	EventName    string         `json:"event_name"`
	SegmentValue string         `json:"segment_value"`
	Count        int64          `json:"count"`
	SampleParams map[string]any `json:"sample_event_params"`
}

type rawUser struct {
	Platform            string           `json:"platform"`
	OSVersion           string           `json:"os_version"`
	AppVersion          string           `json:"app_version"`
	SDKVersion          string           `json:"sdk_version"`
	SDKType             string           `json:"sdk_type"`
	UserProperties      map[string]any   `json:"user_properties"`
	CampaignHiddenUntil map[string]int64 `json:"campaign_hidden_until"`
}

type stateRequest struct {
	ProjectID      string `json:"project_id"`
	ExternalUserID string `json:"external_user_id,omitempty"`
	DeviceID       string `json:"device_id"`
}

// FetchState loads the remote snapshot. A 401 invalidates the cached
// credentials and retries, up to maxAuthAttempts total attempts; every other
// failure surfaces immediately.
func (c *Client) FetchState(ctx context.Context, externalUserID, deviceID string) (*State, error) {
	operation := func() (*rawState, error) {
		return c.fetchOnce(ctx, externalUserID, deviceID)
	}
	raw, err := backoff.RetryWithData(operation, backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(authRetryDelay), maxAuthAttempts-1), ctx))
	if err != nil {
		return nil, err
	}
	return c.decode(raw)
}

func (c *Client) fetchOnce(ctx context.Context, externalUserID, deviceID string) (*rawState, error) {
	token, err := c.creds.Token(ctx)
	if err != nil {
		return nil, backoff.Permanent(errors.Wrap(err, "failed to obtain auth token"))
	}

	var raw rawState
	resp, err := c.http.R().
		SetContext(ctx).
		SetBearerAuthToken(token).
		SetBodyJsonMarshal(stateRequest{
			ProjectID:      c.projectID,
			ExternalUserID: externalUserID,
			DeviceID:       deviceID,
		}).
		SetSuccessResult(&raw).
		Post(c.baseURL + "/v1/sync-state")
	if err != nil {
		return nil, backoff.Permanent(errors.Wrap(err, "sync state request failed"))
	}
	if resp.StatusCode == http.StatusUnauthorized {
		log.Warn().Msg("sync state rejected with 401, invalidating credentials")
		c.creds.Invalidate()
		return nil, ErrUnauthorized
	}
	if resp.IsErrorState() {
		body, _ := resp.ToString()
		return nil, backoff.Permanent(errors.Errorf("sync state returned %d: %s", resp.StatusCode, body))
	}
	return &raw, nil
}

func (c *Client) decode(raw *rawState) (*State, error) {
	campaigns, rejected, reasons := model.ParseCampaigns(raw.Campaigns)
	if rejected > 0 {
		log.Warn().Int("rejected", rejected).Err(reasons).Msg("dropped malformed campaign records")
	}

	rows := make([]counter.Row, 0, len(raw.EventCounts))
	for _, rc := range raw.EventCounts {
		rows = append(rows, counter.Row{
			Date:         rc.Date,
			EventName:    rc.EventName,
			SegmentValue: rc.SegmentValue,
			Count:        rc.Count,
			SampleParams: model.ValuesOf(rc.SampleParams),
		})
	}

	user := userstate.New()
	if raw.UserData != nil {
		user.Platform = raw.UserData.Platform
		user.OSVersion = raw.UserData.OSVersion
		user.AppVersion = raw.UserData.AppVersion
		user.SDKVersion = raw.UserData.SDKVersion
		user.SDKType = raw.UserData.SDKType
		user.SetProperties(model.ValuesOf(raw.UserData.UserProperties))
		for id, until := range raw.UserData.CampaignHiddenUntil {
			user.SetHiddenUntil(id, until)
		}
	}

	return &State{
		Campaigns:         campaigns,
		RejectedCampaigns: rejected,
		CounterRows:       rows,
		User:              user,
	}, nil
}
