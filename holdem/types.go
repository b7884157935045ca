package holdem

import "strings"

const InvalidChair uint16 = 65535

// Phase 游戏阶段
type Phase byte

const (
	PhaseLobby    Phase = 0
	PhasePreflop  Phase = 1
	PhaseFlop     Phase = 2
	PhaseTurn     Phase = 3
	PhaseRiver    Phase = 4
	PhaseShowdown Phase = 5
	PhaseComplete Phase = 6
)

var PhaseDictionary = map[Phase]string{
	PhaseLobby:    "lobby",
	PhasePreflop:  "preflop",
	PhaseFlop:     "flop",
	PhaseTurn:     "turn",
	PhaseRiver:    "river",
	PhaseShowdown: "showdown",
	PhaseComplete: "complete",
}

func (p Phase) String() string {
	if s, ok := PhaseDictionary[p]; ok {
		return s
	}
	return "unknown"
}

// Betting reports whether the phase is one of the four betting streets.
func (p Phase) Betting() bool {
	return p >= PhasePreflop && p <= PhaseRiver
}

// ActionType 动作类型：0-NONE 1-CHECK 2-BET 3-CALL 4-RAISE 5-FOLD 6-ALLIN
type ActionType byte

const (
	PlayerActionTypeNone  ActionType = 0
	PlayerActionTypeCheck ActionType = 1
	PlayerActionTypeBet   ActionType = 2
	PlayerActionTypeCall  ActionType = 3
	PlayerActionTypeRaise ActionType = 4
	PlayerActionTypeFold  ActionType = 5
	PlayerActionTypeAllin ActionType = 6
)

var PlayerActionTypeDictionary = map[ActionType]string{
	PlayerActionTypeNone:  "NONE",
	PlayerActionTypeCheck: "CHECK",
	PlayerActionTypeBet:   "BET",
	PlayerActionTypeCall:  "CALL",
	PlayerActionTypeRaise: "RAISE",
	PlayerActionTypeFold:  "FOLD",
	PlayerActionTypeAllin: "ALLIN",
}

func (a ActionType) String() string {
	if s, ok := PlayerActionTypeDictionary[a]; ok {
		return s
	}
	return "UNKNOWN"
}

// ParseAction accepts the dictionary names case-insensitively, plus "all-in".
func ParseAction(s string) (ActionType, bool) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
	for a, name := range PlayerActionTypeDictionary {
		if a != PlayerActionTypeNone && name == norm {
			return a, true
		}
	}
	return PlayerActionTypeNone, false
}

// HandCategory 牌型，数值越大越强
type HandCategory byte

const (
	HandHighCard      HandCategory = iota + 1 // 高牌
	HandOnePair                               // 一对
	HandTwoPair                               // 两对
	HandThreeOfKind                           // 三条
	HandStraight                              // 顺子
	HandFlush                                 // 同花
	HandFullHouse                             // 葫芦
	HandFourOfKind                            // 四条
	HandStraightFlush                         // 同花顺
)

var handCategoryNames = map[HandCategory]string{
	HandHighCard:      "high-card",
	HandOnePair:       "pair",
	HandTwoPair:       "two-pair",
	HandThreeOfKind:   "trips",
	HandStraight:      "straight",
	HandFlush:         "flush",
	HandFullHouse:     "full-house",
	HandFourOfKind:    "quads",
	HandStraightFlush: "straight-flush",
}

func (h HandCategory) String() string {
	if s, ok := handCategoryNames[h]; ok {
		return s
	}
	return "unknown"
}
