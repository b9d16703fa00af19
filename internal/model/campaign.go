package model

import "cmp"

// ChannelInAppMessage is the only channel this SDK evaluates; campaigns on
// any other channel never enter the active snapshot.
const ChannelInAppMessage = "in-app-message"

// Operator is a comparison operator carried by a condition.
type Operator string

const (
	OpEqual     Operator = "="
	OpNotEqual  Operator = "<>"
	OpGreater   Operator = ">"
	OpGreaterEq Operator = ">="
	OpLess      Operator = "<"
	OpLessEq    Operator = "<="
	OpContains  Operator = "CONTAINS"
	OpIsNull    Operator = "IS_NULL"
	OpIsNotNull Operator = "IS_NOT_NULL"
)

// ValueType selects the type both operands are cast to before comparing.
type ValueType string

const (
	TypeText ValueType = "TEXT"
	TypeInt  ValueType = "INT"
	TypeBool ValueType = "BOOL"
)

// Unit is the subject a condition tests.
type Unit string

const (
	UnitEvent  Unit = "EVENT"
	UnitUser   Unit = "USER"
	UnitDevice Unit = "DEVICE"
)

// EventConditionType selects how an EVENT condition counts occurrences.
type EventConditionType string

const (
	CountX       EventConditionType = "COUNT_X"
	CountXInDays EventConditionType = "COUNT_X_IN_Y_DAYS"
)

// Condition is one leaf predicate of a segment. Which fields are meaningful
// depends on Unit: EVENT conditions compare an occurrence count against
// Value; USER/DEVICE conditions compare an attribute against Value (or
// against a triggering-event parameter when UseEventParams is set).
type Condition struct {
	Unit     Unit
	Operator Operator

	// EVENT unit.
	Event              string
	EventConditionType EventConditionType
	SecondaryValue     int // window size in days for COUNT_X_IN_Y_DAYS

	// USER / DEVICE unit.
	Attribute           string
	ValueType           ValueType
	UseEventParams      bool
	ComparisonParameter string

	Value Value
}

// Group matches only when all of its conditions match. A group with zero
// conditions never matches and marks its campaign malformed.
type Group struct {
	Conditions []Condition
}

// SegmentInfo gates a campaign: any matching group makes it eligible.
type SegmentInfo struct {
	Groups []Group
}

// Message is the render payload handed to the UI layer. TemplateName doubles
// as the key for template-level suppression flags.
type Message struct {
	HTMLURL         string
	ModalProperties map[string]any
	TemplateName    string
}

// Campaign is one server-authored in-app-message targeting rule.
type Campaign struct {
	ID              string
	Channel         string
	LastUpdated     int64
	Start           int64  // epoch seconds
	End             *int64 // nil = unbounded
	TriggeringEvent string
	Delay           int64 // seconds, >= 0
	Testing         bool
	Whitelist       []string
	SegmentInfo     *SegmentInfo // nil = always eligible once triggered
	Message         Message
}

// Whitelisted reports whether the external user id may see a testing campaign.
func (c *Campaign) Whitelisted(externalUserID string) bool {
	for _, id := range c.Whitelist {
		if id == externalUserID {
			return true
		}
	}
	return false
}

// CompareCampaigns orders campaigns by delay ascending, ties broken by
// last-updated timestamp descending (most recently updated first).
func CompareCampaigns(a, b Campaign) int {
	if c := cmp.Compare(a.Delay, b.Delay); c != 0 {
		return c
	}
	return cmp.Compare(b.LastUpdated, a.LastUpdated)
}
