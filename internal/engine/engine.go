// Package engine decides which campaigns fire for an ingested event. It is
// synchronous and pure over its inputs: the campaign snapshot, the event
// counters, and the user state are read, never written.
package engine

import (
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"notifly-go/internal/counter"
	"notifly-go/internal/evaluate"
	"notifly-go/internal/model"
	"notifly-go/internal/userstate"
)

// Suppression flag keys resolved against user properties, keyed by the
// message's template name.
const (
	hideTemplatePrefix      = "hide_in_app_message_"
	hideTemplateUntilPrefix = "hide_in_app_message_until_"
)

// Input is one triggering event plus the identity it fired under.
type Input struct {
	EventName      string
	Params         map[string]model.Value
	ExternalUserID string // empty = anonymous
	Now            time.Time
}

// Select filters the snapshot down to the campaigns that should fire for the
// event and deduplicates them by delay bucket. The result is ordered by delay
// ascending; within a bucket the most recently updated campaign wins.
func Select(campaigns []model.Campaign, in Input, counters *counter.Store, user *userstate.UserData) []model.Campaign {
	var matched []model.Campaign
	for i := range campaigns {
		if eligible(&campaigns[i], in, counters, user) {
			matched = append(matched, campaigns[i])
		}
	}
	return DedupByDelay(matched)
}

// DedupByDelay sorts by the campaign ordering and keeps at most one campaign
// per distinct delay value. Idempotent: re-running it over its own output
// yields the same list.
func DedupByDelay(campaigns []model.Campaign) []model.Campaign {
	if len(campaigns) == 0 {
		return nil
	}
	sorted := make([]model.Campaign, len(campaigns))
	copy(sorted, campaigns)
	slices.SortFunc(sorted, model.CompareCampaigns)

	out := sorted[:1]
	for _, c := range sorted[1:] {
		if c.Delay != out[len(out)-1].Delay {
			out = append(out, c)
		}
	}
	return out
}

// eligible runs the per-campaign filter chain, short-circuiting on the first
// failing step.
func eligible(c *model.Campaign, in Input, counters *counter.Store, user *userstate.UserData) bool {
	// 1. Trigger match.
	if c.TriggeringEvent != in.EventName {
		return false
	}

	// 2. Testing campaigns are visible only to whitelisted external users.
	if c.Testing {
		if in.ExternalUserID == "" || !c.Whitelisted(in.ExternalUserID) {
			return false
		}
	}

	now := in.Now.Unix()

	// 3. Per-campaign re-eligibility. A negative hidden-until means hidden
	// forever; otherwise the message may fire again only once the display
	// moment (now + delay) reaches the suppression deadline.
	if until, ok := user.CampaignHiddenUntil[c.ID]; ok {
		if until < 0 {
			return false
		}
		if now+c.Delay < until {
			return false
		}
	}

	// 4. Template-level suppression, resolved from user properties.
	tpl := c.Message.TemplateName
	if tpl == "" {
		log.Debug().Str("campaign_id", c.ID).Msg("campaign message has no template name")
		return false
	}
	if v, ok := user.Properties[hideTemplatePrefix+tpl]; ok {
		if hidden, castOK := v.AsBool(); castOK && hidden {
			return false
		}
	}
	if v, ok := user.Properties[hideTemplateUntilPrefix+tpl]; ok {
		if until, castOK := v.AsInt(); castOK {
			if until < 0 {
				return false
			}
			if now+c.Delay < until {
				return false
			}
		}
	}

	// 5. Segment rules. No segment info means always eligible once the
	// steps above passed; the campaign time window applies only here.
	if c.SegmentInfo == nil {
		return true
	}
	if now < c.Start {
		return false
	}
	if c.End != nil && now > *c.End {
		return false
	}
	for gi := range c.SegmentInfo.Groups {
		if len(c.SegmentInfo.Groups[gi].Conditions) == 0 {
			log.Debug().Str("campaign_id", c.ID).Int("group", gi).Msg("segment group has no conditions")
			return false
		}
	}
	for gi := range c.SegmentInfo.Groups {
		if groupMatches(&c.SegmentInfo.Groups[gi], in, counters, user) {
			return true
		}
	}
	return false
}

// groupMatches requires every condition in the group to hold.
func groupMatches(g *model.Group, in Input, counters *counter.Store, user *userstate.UserData) bool {
	for i := range g.Conditions {
		if !conditionMatches(&g.Conditions[i], in, counters, user) {
			return false
		}
	}
	return true
}

func conditionMatches(cond *model.Condition, in Input, counters *counter.Store, user *userstate.UserData) bool {
	switch cond.Unit {
	case model.UnitEvent:
		threshold, ok := cond.Value.AsInt()
		if !ok {
			return false
		}
		var count int64
		switch cond.EventConditionType {
		case model.CountX:
			count = counters.Count(cond.Event)
		case model.CountXInDays:
			count = counters.CountWithin(cond.Event, cond.SecondaryValue, in.Now)
		default:
			return false
		}
		return evaluate.CompareEventCount(count, cond.Operator, threshold)

	case model.UnitUser, model.UnitDevice:
		var left model.Value
		if cond.Unit == model.UnitUser {
			left = user.Properties[cond.Attribute] // zero Value is Null when absent
		} else {
			left, _ = user.DeviceAttribute(cond.Attribute)
		}
		right := cond.Value
		if cond.UseEventParams {
			right = in.Params[cond.ComparisonParameter]
		}
		return evaluate.Compare(left, right, cond.ValueType, cond.Operator)

	default:
		return false
	}
}
