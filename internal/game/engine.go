package game

import (
	"encoding/json"
)

// Action is one client move, already authenticated and sequence-checked by
// the session service before it reaches an engine.
type Action struct {
	Name   string          `json:"name"`
	Params json.RawMessage `json:"params,omitempty"`
}

// StepResult describes the effect of one accepted action.
type StepResult struct {
	// ExtraDebit is an additional stake the action locks (double, split,
	// insurance). The service debits it in the same transaction; the engine
	// never touches balances.
	ExtraDebit int64
	// Finished reports that a terminal play condition was reached and the
	// session should move to RESOLVING.
	Finished bool
}

// Engine is the per-kind rule set for single-subject games. Engines are pure:
// they transform payloads and never perform I/O, which keeps every rule
// decision inside the caller's transaction and directly testable.
type Engine interface {
	Kind() Kind

	// Start validates params and builds the initial hidden payload. The
	// stake has already been range-checked and debited by the caller.
	// finished is true when the deal itself is terminal (e.g. a natural).
	Start(bet int64, params json.RawMessage) (payload interface{}, finished bool, err error)

	// Apply performs exactly one move on the payload.
	Apply(payload json.RawMessage, act Action) (updated interface{}, res StepResult, err error)

	// Resolve computes the final payout for the whole session (including any
	// extra stakes recorded in the payload) and returns the fully revealed
	// payload for client read-back.
	Resolve(payload json.RawMessage, bet int64) (payout int64, final interface{}, err error)

	// ForceFinish drives a live payload to a resolvable terminal state, used
	// by the reaper on stale sessions. No new information is dealt.
	ForceFinish(payload json.RawMessage) (interface{}, error)

	// Project returns the public-safe view of the payload: hidden information
	// stays redacted until the session is finished.
	Project(payload json.RawMessage, state State) (interface{}, error)
}

// Outcome is a two-party game's terminal result. Payouts are decided by the
// room service from the winner role, the draw flag and the pot.
type Outcome struct {
	Winner string         `json:"winner,omitempty"` // "p1" or "p2", empty on draw
	Draw   bool           `json:"draw"`
	Scores map[string]int `json:"scores,omitempty"`
}

// RoomEngine is the per-kind rule set for two-party games. Same purity rules
// as Engine; join/leave/deadline bookkeeping lives in the room service.
type RoomEngine interface {
	Kind() Kind

	// Init builds the initial shared board/table payload.
	Init() (payload interface{}, err error)

	// Apply performs one move by the given role.
	Apply(payload json.RawMessage, role string, act Action) (updated interface{}, finished bool, err error)

	// Resolve computes the terminal outcome from the payload as it stands.
	Resolve(payload json.RawMessage) (Outcome, interface{}, error)

	// Project returns the role's public-safe view of the payload.
	Project(payload json.RawMessage, role string, status string) (interface{}, error)
}

// remarshal round-trips a raw payload into the engine's concrete type.
func remarshal(raw json.RawMessage, into interface{}) error {
	if err := json.Unmarshal(raw, into); err != nil {
		return ErrValidation
	}
	return nil
}
