// Package workflow implements the guided capture flows as an explicit
// state machine. A Session is a plain value threaded through Handle;
// nothing is persisted until a flow's final confirmation, so abandoning
// or cancelling a session can never leave partial data in the ledger.
package workflow

import (
	"errors"

	"caixa/internal/core"
	"caixa/internal/ledger"
	"caixa/internal/services"
)

type State int

const (
	StateIdle State = iota
	StateChooseDirection
	StateChooseCategory
	StateEnterAmount
	StateEnterDescription
	StateConfirmTransaction
	StateEnterCategoryName
	StateChooseCategoryToRename
	StateEnterRenamedCategory
	StateChooseCategoryToRemove
	StateConfirmCategoryRemoval
	StateEnterGoalValue
	StateEnterBalance
	StateConfirmClosing
	StateReconfirmClosing
	StateConfirmErase
)

type GoalKind string

const (
	GoalSavings    GoalKind = "savings"
	GoalSpendLimit GoalKind = "spend_limit"
)

// Session carries a flow's staged data between inputs. The zero value
// is an idle session. Closing holds the previewed record shown to the
// user; confirmation records exactly that snapshot or re-prompts.
type Session struct {
	State       State
	Direction   core.Direction
	Category    string
	Amount      core.Money
	Description string
	RenameFrom  string
	GoalKind    GoalKind
	Closing     *core.ClosingRecord
}

// ErrUnexpectedInput is wrapped into Rejected when an input does not
// fit the session's current state.
var ErrUnexpectedInput = errors.New("unexpected input")

// Input is the closed set of things a user can feed the machine.
type Input interface{ isInput() }

type (
	// StartTransaction begins the guided transaction capture.
	StartTransaction struct{}
	// PickDirection answers the direction prompt.
	PickDirection struct{ Direction core.Direction }
	// PickCategory answers a category choice prompt.
	PickCategory struct{ Name string }
	// Text answers a free-text prompt (amount, description, names, values).
	Text struct{ Value string }
	// Confirm answers any confirmation prompt affirmatively.
	Confirm struct{}
	// Cancel aborts the current flow from any state.
	Cancel struct{}

	// StartAddCategory begins registering a category for a direction.
	StartAddCategory struct{ Direction core.Direction }
	// StartRenameCategory begins renaming a category.
	StartRenameCategory struct{ Direction core.Direction }
	// StartRemoveCategory begins removing a category.
	StartRemoveCategory struct{ Direction core.Direction }
	// StartSetGoal begins setting a monthly goal value.
	StartSetGoal struct{ Kind GoalKind }
	// StartAdjustBalance begins a manual balance adjustment.
	StartAdjustBalance struct{}
	// StartClosing begins the daily closing protocol.
	StartClosing struct{}
	// StartErase begins the full ledger erase, behind a confirmation.
	StartErase struct{}
)

func (StartTransaction) isInput()    {}
func (PickDirection) isInput()       {}
func (PickCategory) isInput()        {}
func (Text) isInput()                {}
func (Confirm) isInput()             {}
func (Cancel) isInput()              {}
func (StartAddCategory) isInput()    {}
func (StartRenameCategory) isInput() {}
func (StartRemoveCategory) isInput() {}
func (StartSetGoal) isInput()        {}
func (StartAdjustBalance) isInput()  {}
func (StartClosing) isInput()        {}
func (StartErase) isInput()          {}

type PromptKind int

const (
	PromptDirection PromptKind = iota
	PromptCategory
	PromptAmount
	PromptDescription
	PromptConfirmTransaction
	PromptCategoryName
	PromptRenameSource
	PromptRenameTarget
	PromptRemoveChoice
	PromptRemoveConfirm
	PromptGoalValue
	PromptBalance
	PromptClosingConfirm
	PromptClosingReconfirm
	PromptEraseConfirm
)

// Outcome is the closed set of results Handle can produce.
type Outcome interface{ isOutcome() }

type (
	// Prompt asks the caller to put a question to the user. Choices is
	// set for pick prompts, Staged for the transaction confirmation,
	// Closing for the closing confirmations and UsageCount for the
	// category removal confirmation.
	Prompt struct {
		Kind       PromptKind
		Choices    []string
		Staged     *Session
		Closing    *core.ClosingRecord
		UsageCount int
	}

	// Rejected reports an invalid input. The session stays where it
	// was; Reprompt repeats the pending question.
	Rejected struct {
		Err      error
		Reprompt Prompt
	}

	// Failed reports that a confirmed operation could not be applied.
	// The flow is abandoned.
	Failed struct{ Err error }

	// Cancelled reports that the flow was abandoned on request.
	Cancelled struct{}

	TransactionCommitted struct{ Result services.AppendResult }
	BalanceAdjusted      struct{ Result services.AdjustResult }
	CategoryAdded        struct {
		Direction core.Direction
		Name      string
	}
	CategoryRenamed struct {
		Direction core.Direction
		From, To  string
		Touched   int
	}
	CategoryRemoved struct {
		Direction core.Direction
		Name      string
		Result    ledger.RemoveResult
	}
	GoalSet struct {
		Kind  GoalKind
		Value core.Money
	}
	ClosingRecorded struct{ Record core.ClosingRecord }
	Erased          struct{}
)

func (Prompt) isOutcome()               {}
func (Rejected) isOutcome()             {}
func (Failed) isOutcome()               {}
func (Cancelled) isOutcome()            {}
func (TransactionCommitted) isOutcome() {}
func (BalanceAdjusted) isOutcome()      {}
func (CategoryAdded) isOutcome()        {}
func (CategoryRenamed) isOutcome()      {}
func (CategoryRemoved) isOutcome()      {}
func (GoalSet) isOutcome()              {}
func (ClosingRecorded) isOutcome()      {}
func (Erased) isOutcome()               {}
