// Package userstate holds the synced user/device snapshot: read-only device
// attributes, mutable user properties, and per-campaign suppression
// timestamps.
package userstate

import (
	"reflect"

	"dario.cat/mergo"
	"github.com/pkg/errors"

	"notifly-go/internal/model"
)

// HiddenForever marks a campaign suppressed with no expiry. Any negative
// hidden-until value means the same thing.
const HiddenForever int64 = -1

// UserData is the user/device half of the snapshot. Device attributes are
// read-only after sync; Properties and CampaignHiddenUntil mutate locally
// between syncs.
type UserData struct {
	Platform   string
	OSVersion  string
	AppVersion string
	SDKVersion string
	SDKType    string

	Properties          map[string]model.Value
	CampaignHiddenUntil map[string]int64
}

func New() *UserData {
	return &UserData{
		Properties:          map[string]model.Value{},
		CampaignHiddenUntil: map[string]int64{},
	}
}

// DeviceAttribute resolves a DEVICE-unit condition attribute by name.
func (u *UserData) DeviceAttribute(name string) (model.Value, bool) {
	switch name {
	case "platform":
		return model.TextValue(u.Platform), true
	case "os_version", "osVersion":
		return model.TextValue(u.OSVersion), true
	case "app_version", "appVersion":
		return model.TextValue(u.AppVersion), true
	case "sdk_version", "sdkVersion":
		return model.TextValue(u.SDKVersion), true
	case "sdk_type", "sdkType":
		return model.TextValue(u.SDKType), true
	default:
		return model.Null(), false
	}
}

// SetProperties merges props into the user-properties map, last write wins
// per key.
func (u *UserData) SetProperties(props map[string]model.Value) {
	for k, v := range props {
		u.Properties[k] = v
	}
}

// SetHiddenUntil sets or overwrites the suppression entry for a campaign.
func (u *UserData) SetHiddenUntil(campaignID string, until int64) {
	u.CampaignHiddenUntil[campaignID] = until
}

// Clear empties the mutable maps in place, keeping device attributes.
// Used when the external user id is removed.
func (u *UserData) Clear() {
	clear(u.Properties)
	clear(u.CampaignHiddenUntil)
}

// Merge folds a remote snapshot into the local one for a merging sync
// (anonymous -> registered transition). Local edits are authoritative:
// remote values fill only fields and map keys the local side doesn't
// already have.
func (u *UserData) Merge(remote *UserData) error {
	if remote == nil {
		return nil
	}
	err := mergo.Merge(u, *remote, mergo.WithTransformers(fillMissingKeys{}))
	return errors.Wrap(err, "failed to merge user data")
}

// fillMissingKeys keeps mergo from deep-merging map values of mismatched
// kinds: for the two snapshot maps, a remote entry is taken only when the
// local map has no entry under that key at all.
type fillMissingKeys struct{}

func (fillMissingKeys) Transformer(t reflect.Type) func(dst, src reflect.Value) error {
	if t != reflect.TypeOf(map[string]model.Value(nil)) && t != reflect.TypeOf(map[string]int64(nil)) {
		return nil
	}
	return func(dst, src reflect.Value) error {
		if src.IsNil() || !dst.CanSet() {
			return nil
		}
		if dst.IsNil() {
			dst.Set(reflect.MakeMap(src.Type()))
		}
		for _, key := range src.MapKeys() {
			if dst.MapIndex(key).IsValid() {
				continue
			}
			dst.SetMapIndex(key, src.MapIndex(key))
		}
		return nil
	}
}
