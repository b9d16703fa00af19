package model

import (
	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Wire shapes. Parsing is best-effort: a malformed campaign is dropped on
// its own, it never fails the sync that carried it.

type rawCampaign struct {
	ID              string          `json:"id"`
	Channel         string          `json:"channel"`
	LastUpdated     int64           `json:"last_updated_timestamp"`
	Starts          []int64         `json:"starts"`
	End             *int64          `json:"end"`
	SegmentType     string          `json:"segment_type"`
	Testing         bool            `json:"testing"`
	Whitelist       []string        `json:"whitelist"`
	TriggeringEvent string          `json:"triggering_event"`
	Delay           *int64          `json:"delay"`
	Message         rawMessage      `json:"message"`
	SegmentInfo     *rawSegmentInfo `json:"segment_info"`
}

type rawMessage struct {
	HTMLURL         string         `json:"html_url"`
	ModalProperties map[string]any `json:"modal_properties"`
	TemplateName    string         `json:"template_name"`
}

type rawSegmentInfo struct {
	Groups []rawGroup `json:"groups"`
}

type rawGroup struct {
	Conditions []rawCondition `json:"conditions"`
}

type rawCondition struct {
	Unit                string `json:"unit"`
	Operator            string `json:"operator"`
	Value               any    `json:"value"`
	Attribute           string `json:"attribute"`
	Event               string `json:"event"`
	EventConditionType  string `json:"event_condition_type"`
	SecondaryValue      *int   `json:"secondary_value"`
	ValueType           string `json:"valueType"`
	UseEventParams      bool   `json:"useEventParamsAsConditionValue"`
	ComparisonParameter string `json:"comparison_parameter"`
}

const segmentTypeCondition = "condition"

// eventOperators are the only operators defined for occurrence counts.
var eventOperators = map[Operator]bool{
	OpEqual: true, OpGreater: true, OpGreaterEq: true, OpLess: true, OpLessEq: true,
}

var allOperators = map[Operator]bool{
	OpEqual: true, OpNotEqual: true, OpGreater: true, OpGreaterEq: true,
	OpLess: true, OpLessEq: true, OpContains: true, OpIsNull: true, OpIsNotNull: true,
}

// ParseCampaign decodes and validates a single campaign record.
func ParseCampaign(data []byte) (Campaign, error) {
	var raw rawCampaign
	if err := json.Unmarshal(data, &raw); err != nil {
		return Campaign{}, errors.Wrap(err, "undecodable campaign record")
	}
	if raw.ID == "" {
		return Campaign{}, errors.New("campaign without id")
	}
	if raw.Channel != ChannelInAppMessage {
		return Campaign{}, errors.Errorf("campaign %s: channel %q is not %q", raw.ID, raw.Channel, ChannelInAppMessage)
	}
	if raw.TriggeringEvent == "" {
		return Campaign{}, errors.Errorf("campaign %s: missing triggering_event", raw.ID)
	}
	if raw.Delay != nil && *raw.Delay < 0 {
		return Campaign{}, errors.Errorf("campaign %s: negative delay %d", raw.ID, *raw.Delay)
	}

	c := Campaign{
		ID:              raw.ID,
		Channel:         raw.Channel,
		LastUpdated:     raw.LastUpdated,
		End:             raw.End,
		TriggeringEvent: raw.TriggeringEvent,
		Testing:         raw.Testing,
		Whitelist:       raw.Whitelist,
		Message: Message{
			HTMLURL:         raw.Message.HTMLURL,
			ModalProperties: raw.Message.ModalProperties,
			TemplateName:    raw.Message.TemplateName,
		},
	}
	if len(raw.Starts) > 0 {
		c.Start = raw.Starts[0]
	}
	if raw.Delay != nil {
		c.Delay = *raw.Delay
	}
	if raw.SegmentInfo != nil {
		if raw.SegmentType != segmentTypeCondition {
			return Campaign{}, errors.Errorf("campaign %s: unsupported segment_type %q", raw.ID, raw.SegmentType)
		}
		si, err := parseSegmentInfo(raw.SegmentInfo)
		if err != nil {
			return Campaign{}, errors.Wrapf(err, "campaign %s", raw.ID)
		}
		c.SegmentInfo = si
	}

	return c, nil
}

func parseSegmentInfo(raw *rawSegmentInfo) (*SegmentInfo, error) {
	si := &SegmentInfo{Groups: make([]Group, 0, len(raw.Groups))}
	for gi, g := range raw.Groups {
		group := Group{Conditions: make([]Condition, 0, len(g.Conditions))}
		for ci, rc := range g.Conditions {
			cond, err := parseCondition(rc)
			if err != nil {
				return nil, errors.Wrapf(err, "group %d condition %d", gi, ci)
			}
			group.Conditions = append(group.Conditions, cond)
		}
		si.Groups = append(si.Groups, group)
	}
	return si, nil
}

func parseCondition(raw rawCondition) (Condition, error) {
	op := Operator(raw.Operator)
	if !allOperators[op] {
		return Condition{}, errors.Errorf("unknown operator %q", raw.Operator)
	}

	switch Unit(raw.Unit) {
	case UnitEvent:
		if raw.Event == "" {
			return Condition{}, errors.New("event condition without event name")
		}
		if !eventOperators[op] {
			return Condition{}, errors.Errorf("operator %q is not defined for event counts", raw.Operator)
		}
		ect := EventConditionType(raw.EventConditionType)
		cond := Condition{
			Unit:               UnitEvent,
			Operator:           op,
			Event:              raw.Event,
			EventConditionType: ect,
			Value:              ValueOf(raw.Value),
		}
		switch ect {
		case CountX:
		case CountXInDays:
			if raw.SecondaryValue == nil || *raw.SecondaryValue < 0 {
				return Condition{}, errors.New("COUNT_X_IN_Y_DAYS without a valid secondary_value")
			}
			cond.SecondaryValue = *raw.SecondaryValue
		default:
			return Condition{}, errors.Errorf("unknown event_condition_type %q", raw.EventConditionType)
		}
		if _, ok := cond.Value.AsInt(); !ok {
			return Condition{}, errors.New("event condition threshold is not an integer")
		}
		return cond, nil

	case UnitUser, UnitDevice:
		vt := ValueType(raw.ValueType)
		if vt != TypeText && vt != TypeInt && vt != TypeBool {
			return Condition{}, errors.Errorf("unknown valueType %q", raw.ValueType)
		}
		if raw.Attribute == "" {
			return Condition{}, errors.New("attribute condition without attribute name")
		}
		cond := Condition{
			Unit:                Unit(raw.Unit),
			Operator:            op,
			Attribute:           raw.Attribute,
			ValueType:           vt,
			UseEventParams:      raw.UseEventParams,
			ComparisonParameter: raw.ComparisonParameter,
			Value:               ValueOf(raw.Value),
		}
		if cond.UseEventParams && cond.ComparisonParameter == "" {
			return Condition{}, errors.New("useEventParamsAsConditionValue without comparison_parameter")
		}
		return cond, nil

	default:
		return Condition{}, errors.Errorf("unknown unit %q", raw.Unit)
	}
}

// ParseCampaigns applies the best-effort policy over a sync payload:
// malformed records are dropped and counted, valid ones are kept.
// The returned error aggregates the individual drop reasons for logging.
func ParseCampaigns(records []json.RawMessage) (accepted []Campaign, rejected int, reasons error) {
	var errs *multierror.Error
	for _, rec := range records {
		c, err := ParseCampaign(rec)
		if err != nil {
			rejected++
			errs = multierror.Append(errs, err)
			continue
		}
		accepted = append(accepted, c)
	}
	return accepted, rejected, errs.ErrorOrNil()
}
