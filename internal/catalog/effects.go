package catalog

import (
	"encoding/json"
	"fmt"
)

// EffectType enumerates the closed set of effect kinds the engine can resolve.
// Unknown kinds are rejected when the catalog is loaded, never at match time.
type EffectType string

const (
	EffectPowerBoost        EffectType = "power_boost"
	EffectDealDamage        EffectType = "deal_damage"
	EffectRestoreHP         EffectType = "restore_hp"
	EffectDraw              EffectType = "draw"
	EffectGenerateHolopower EffectType = "generate_holopower"
	EffectSendCheer         EffectType = "send_cheer"
	EffectChooseCards       EffectType = "choose_cards"
	EffectAddTurnEffect     EffectType = "add_turn_effect"
	EffectChoice            EffectType = "choice"
)

var validEffectTypes = map[EffectType]bool{
	EffectPowerBoost:        true,
	EffectDealDamage:        true,
	EffectRestoreHP:         true,
	EffectDraw:              true,
	EffectGenerateHolopower: true,
	EffectSendCheer:         true,
	EffectChooseCards:       true,
	EffectAddTurnEffect:     true,
	EffectChoice:            true,
}

// Condition kinds evaluated by the engine's predicate interface.
const (
	ConditionBloomFromOshiSkill            = "bloom_from_oshi_skill"
	ConditionCenterHasAnyTag               = "center_has_any_tag"
	ConditionHolopowerAtLeast              = "holopower_at_least"
	ConditionAttachedCheerCountAtLeast     = "attached_cheer_count_at_least"
	ConditionOpponentBackstageDamagedCount = "opponent_backstage_damaged_count_at_least"
	ConditionPerformerIsCenter             = "performer_is_center"
)

var validConditions = map[string]bool{
	ConditionBloomFromOshiSkill:            true,
	ConditionCenterHasAnyTag:               true,
	ConditionHolopowerAtLeast:              true,
	ConditionAttachedCheerCountAtLeast:     true,
	ConditionOpponentBackstageDamagedCount: true,
	ConditionPerformerIsCenter:             true,
}

// Limitation kinds that narrow an effect's candidate target set.
const (
	LimitationNameIn  = "name_in"
	LimitationColorIn = "color_in"
	LimitationTagIn   = "tag_in"
)

var validLimitations = map[string]bool{
	"":                true,
	LimitationNameIn:  true,
	LimitationColorIn: true,
	LimitationTagIn:   true,
}

// Per kinds scale a numeric amount by a board count.
const (
	PerDamagedOpponentBackstage = "damaged_opponent_backstage"
	PerOwnHolomemWithTag        = "own_holomem_with_tag"
)

var validPerKinds = map[string]bool{
	PerDamagedOpponentBackstage: true,
	PerOwnHolomemWithTag:        true,
}

// Target scopes an effect can select from.
const (
	TargetSelf              = "self"
	TargetCenter            = "center"
	TargetCollab            = "collab"
	TargetBackstage         = "backstage"
	TargetHolomem           = "holomem"
	TargetOpponentCenter    = "opponent_center"
	TargetOpponentHolomem   = "opponent_holomem"
	TargetOpponentBackstage = "opponent_backstage"
)

var validTargets = map[string]bool{
	"":                      true,
	TargetSelf:              true,
	TargetCenter:            true,
	TargetCollab:            true,
	TargetBackstage:         true,
	TargetHolomem:           true,
	TargetOpponentCenter:    true,
	TargetOpponentHolomem:   true,
	TargetOpponentBackstage: true,
}

// Play requirement content types a support card may declare.
const (
	RequirementCheerToArchiveFromPlay = "cheer_to_archive_from_play"
)

// Amount is either a literal value or the sentinel "all".
type Amount struct {
	All   bool
	Value int
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	if string(data) == `"all"` {
		a.All = true
		a.Value = 0
		return nil
	}
	return json.Unmarshal(data, &a.Value)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if a.All {
		return []byte(`"all"`), nil
	}
	return json.Marshal(a.Value)
}

// EffectSpec is one step of an effect chain attached to an art, oshi skill,
// or support card. Which fields are meaningful depends on Type; Validate
// rejects specs whose tag or auxiliary kinds fall outside the closed sets.
type EffectSpec struct {
	Type             EffectType      `json:"effect_type"`
	Target           string          `json:"target,omitempty"`
	Amount           Amount          `json:"amount,omitempty"`
	AmountPer        int             `json:"amount_per,omitempty"`
	Per              *PerSpec        `json:"per,omitempty"`
	Limitation       string          `json:"limitation,omitempty"`
	LimitationNames  []string        `json:"limitation_names,omitempty"`
	LimitationColors []string        `json:"limitation_colors,omitempty"`
	LimitationTags   []string        `json:"limitation_tags,omitempty"`
	MultipleTargets  bool            `json:"multiple_targets,omitempty"`
	Repeat           bool            `json:"repeat,omitempty"`
	Conditions       []ConditionSpec `json:"conditions,omitempty"`

	// send_cheer / choose_cards bounds
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	AmountMin int    `json:"amount_min,omitempty"`
	AmountMax int    `json:"amount_max,omitempty"`

	// choose_cards
	LookAt      int      `json:"look_at,omitempty"`
	Destination string   `json:"destination,omitempty"`
	WithTypes   []string `json:"with_types,omitempty"`

	// add_turn_effect
	TurnEffect *TurnEffectSpec `json:"turn_effect,omitempty"`

	// choice
	Options [][]EffectSpec `json:"options,omitempty"`
}

// PerSpec names the board count that scales an amount.
type PerSpec struct {
	Kind string `json:"kind"`
	Tag  string `json:"tag,omitempty"`
}

// ConditionSpec is a boolean predicate evaluated against engine state.
type ConditionSpec struct {
	Condition string   `json:"condition"`
	Amount    int      `json:"amount,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// TurnEffectSpec boosts arts performed until end of turn.
type TurnEffectSpec struct {
	Source     string `json:"source,omitempty"` // center, collab, or holomem (any performer)
	PowerBoost int    `json:"power_boost"`
}

// Validate checks the spec against the closed tag sets.
func (e *EffectSpec) Validate() error {
	if !validEffectTypes[e.Type] {
		return fmt.Errorf("unknown effect type %q", e.Type)
	}
	if !validTargets[e.Target] {
		return fmt.Errorf("effect %s: unknown target %q", e.Type, e.Target)
	}
	if !validLimitations[e.Limitation] {
		return fmt.Errorf("effect %s: unknown limitation %q", e.Type, e.Limitation)
	}
	if e.Per != nil && !validPerKinds[e.Per.Kind] {
		return fmt.Errorf("effect %s: unknown per kind %q", e.Type, e.Per.Kind)
	}
	for i := range e.Conditions {
		if err := e.Conditions[i].Validate(); err != nil {
			return fmt.Errorf("effect %s: %w", e.Type, err)
		}
	}
	switch e.Type {
	case EffectChoice:
		if len(e.Options) < 2 {
			return fmt.Errorf("choice effect requires at least 2 options")
		}
		for _, branch := range e.Options {
			for i := range branch {
				if err := branch[i].Validate(); err != nil {
					return fmt.Errorf("choice option: %w", err)
				}
			}
		}
	case EffectSendCheer:
		if e.AmountMax < e.AmountMin {
			return fmt.Errorf("send_cheer: amount_max %d below amount_min %d", e.AmountMax, e.AmountMin)
		}
	case EffectChooseCards:
		switch e.From {
		case "deck", "archive", "hand":
		default:
			return fmt.Errorf("choose_cards: unknown source zone %q", e.From)
		}
		switch e.Destination {
		case "hand", "archive", "deck":
		default:
			return fmt.Errorf("choose_cards: unknown destination %q", e.Destination)
		}
	case EffectAddTurnEffect:
		if e.TurnEffect == nil {
			return fmt.Errorf("add_turn_effect requires a turn_effect")
		}
	}
	return nil
}

// Validate checks the condition kind against the closed set.
func (c *ConditionSpec) Validate() error {
	if !validConditions[c.Condition] {
		return fmt.Errorf("unknown condition %q", c.Condition)
	}
	return nil
}
