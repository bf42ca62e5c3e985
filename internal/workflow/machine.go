package workflow

import (
	"context"
	"errors"
	"strings"

	"caixa/internal/core"
	"caixa/internal/ledger"
	"caixa/internal/services"
)

// Service is what the machine needs from the ledger side. Implemented
// by services.LedgerService.
type Service interface {
	Categories(ctx context.Context, userID string, dir core.Direction) ([]string, error)
	Append(ctx context.Context, userID string, dir core.Direction, category string, amount core.Money, description string) (services.AppendResult, error)
	AdjustBalance(ctx context.Context, userID string, newBalance core.Money) (services.AdjustResult, error)
	AddCategory(ctx context.Context, userID string, dir core.Direction, name string) error
	RenameCategory(ctx context.Context, userID string, dir core.Direction, oldName, newName string) (int, error)
	RemoveCategory(ctx context.Context, userID string, dir core.Direction, name string, confirmed bool) (ledger.RemoveResult, error)
	SetSavingsTarget(ctx context.Context, userID string, target core.Money) error
	SetSpendLimit(ctx context.Context, userID string, limit core.Money) error
	PrepareClosing(ctx context.Context, userID string) (services.ClosingPreview, error)
	ConfirmClosing(ctx context.Context, userID string, previewed core.ClosingRecord) (core.ClosingRecord, error)
	Erase(ctx context.Context, userID string) error
}

type Machine struct {
	svc Service
}

func NewMachine(svc Service) *Machine {
	return &Machine{svc: svc}
}

// Handle advances a session with one input and returns the new session
// plus what happened. Cancel aborts any flow; a Start input from the
// middle of another flow discards that flow and begins the new one.
// Terminal outcomes always return an idle session.
func (m *Machine) Handle(ctx context.Context, userID string, sess Session, input Input) (Session, Outcome) {
	switch in := input.(type) {
	case Cancel:
		return Session{}, Cancelled{}

	case StartTransaction:
		sess = Session{State: StateChooseDirection}
		return sess, Prompt{Kind: PromptDirection, Choices: []string{string(core.Entry), string(core.Exit)}}

	case StartAddCategory:
		if !in.Direction.Valid() {
			return sess, Rejected{Err: core.ErrUnknownDirection}
		}
		sess = Session{State: StateEnterCategoryName, Direction: in.Direction}
		return sess, Prompt{Kind: PromptCategoryName}

	case StartRenameCategory:
		return m.startCategoryChoice(ctx, userID, in.Direction, StateChooseCategoryToRename, PromptRenameSource)

	case StartRemoveCategory:
		return m.startCategoryChoice(ctx, userID, in.Direction, StateChooseCategoryToRemove, PromptRemoveChoice)

	case StartSetGoal:
		if in.Kind != GoalSavings && in.Kind != GoalSpendLimit {
			return sess, Rejected{Err: ErrUnexpectedInput}
		}
		sess = Session{State: StateEnterGoalValue, GoalKind: in.Kind}
		return sess, Prompt{Kind: PromptGoalValue}

	case StartAdjustBalance:
		sess = Session{State: StateEnterBalance}
		return sess, Prompt{Kind: PromptBalance}

	case StartClosing:
		preview, err := m.svc.PrepareClosing(ctx, userID)
		if err != nil {
			return Session{}, Failed{Err: err}
		}
		if preview.NeedsReconfirm {
			sess = Session{State: StateReconfirmClosing, Closing: &preview.Pending}
			return sess, Prompt{Kind: PromptClosingReconfirm, Closing: &preview.Pending}
		}
		sess = Session{State: StateConfirmClosing, Closing: &preview.Pending}
		return sess, Prompt{Kind: PromptClosingConfirm, Closing: &preview.Pending}

	case StartErase:
		sess = Session{State: StateConfirmErase}
		return sess, Prompt{Kind: PromptEraseConfirm}
	}

	switch sess.State {
	case StateChooseDirection:
		return m.handleChooseDirection(ctx, userID, sess, input)
	case StateChooseCategory:
		return m.handleChooseCategory(ctx, userID, sess, input)
	case StateEnterAmount:
		return m.handleEnterAmount(sess, input)
	case StateEnterDescription:
		return m.handleEnterDescription(sess, input)
	case StateConfirmTransaction:
		return m.handleConfirmTransaction(ctx, userID, sess, input)
	case StateEnterCategoryName:
		return m.handleEnterCategoryName(ctx, userID, sess, input)
	case StateChooseCategoryToRename:
		return m.handleChooseCategoryToRename(ctx, userID, sess, input)
	case StateEnterRenamedCategory:
		return m.handleEnterRenamedCategory(ctx, userID, sess, input)
	case StateChooseCategoryToRemove:
		return m.handleChooseCategoryToRemove(ctx, userID, sess, input)
	case StateConfirmCategoryRemoval:
		return m.handleConfirmCategoryRemoval(ctx, userID, sess, input)
	case StateEnterGoalValue:
		return m.handleEnterGoalValue(ctx, userID, sess, input)
	case StateEnterBalance:
		return m.handleEnterBalance(ctx, userID, sess, input)
	case StateConfirmClosing, StateReconfirmClosing:
		return m.handleClosingConfirm(ctx, userID, sess, input)
	case StateConfirmErase:
		return m.handleConfirmErase(ctx, userID, sess, input)
	}
	return sess, Rejected{Err: ErrUnexpectedInput}
}

func (m *Machine) startCategoryChoice(ctx context.Context, userID string, dir core.Direction, state State, kind PromptKind) (Session, Outcome) {
	if !dir.Valid() {
		return Session{}, Rejected{Err: core.ErrUnknownDirection}
	}
	names, err := m.svc.Categories(ctx, userID, dir)
	if err != nil {
		return Session{}, Failed{Err: err}
	}
	sess := Session{State: state, Direction: dir}
	return sess, Prompt{Kind: kind, Choices: names}
}

func (m *Machine) handleChooseDirection(ctx context.Context, userID string, sess Session, input Input) (Session, Outcome) {
	reprompt := Prompt{Kind: PromptDirection, Choices: []string{string(core.Entry), string(core.Exit)}}
	pick, ok := input.(PickDirection)
	if !ok {
		return sess, Rejected{Err: ErrUnexpectedInput, Reprompt: reprompt}
	}
	if !pick.Direction.Valid() {
		return sess, Rejected{Err: core.ErrUnknownDirection, Reprompt: reprompt}
	}
	names, err := m.svc.Categories(ctx, userID, pick.Direction)
	if err != nil {
		return Session{}, Failed{Err: err}
	}
	sess.Direction = pick.Direction
	sess.State = StateChooseCategory
	return sess, Prompt{Kind: PromptCategory, Choices: names}
}

func (m *Machine) handleChooseCategory(ctx context.Context, userID string, sess Session, input Input) (Session, Outcome) {
	names, err := m.svc.Categories(ctx, userID, sess.Direction)
	if err != nil {
		return Session{}, Failed{Err: err}
	}
	reprompt := Prompt{Kind: PromptCategory, Choices: names}

	pick, ok := input.(PickCategory)
	if !ok {
		return sess, Rejected{Err: ErrUnexpectedInput, Reprompt: reprompt}
	}
	if !contains(names, pick.Name) {
		return sess, Rejected{Err: core.ErrUnknownCategory, Reprompt: reprompt}
	}
	sess.Category = pick.Name
	sess.State = StateEnterAmount
	return sess, Prompt{Kind: PromptAmount}
}

func (m *Machine) handleEnterAmount(sess Session, input Input) (Session, Outcome) {
	reprompt := Prompt{Kind: PromptAmount}
	text, ok := input.(Text)
	if !ok {
		return sess, Rejected{Err: ErrUnexpectedInput, Reprompt: reprompt}
	}
	amount, err := core.ParseAmount(text.Value)
	if err != nil {
		return sess, Rejected{Err: err, Reprompt: reprompt}
	}
	sess.Amount = amount
	sess.State = StateEnterDescription
	return sess, Prompt{Kind: PromptDescription}
}

func (m *Machine) handleEnterDescription(sess Session, input Input) (Session, Outcome) {
	reprompt := Prompt{Kind: PromptDescription}
	text, ok := input.(Text)
	if !ok {
		return sess, Rejected{Err: ErrUnexpectedInput, Reprompt: reprompt}
	}
	desc := strings.TrimSpace(text.Value)
	if desc == "" {
		return sess, Rejected{Err: core.ErrEmptyDescription, Reprompt: reprompt}
	}
	sess.Description = desc
	sess.State = StateConfirmTransaction
	staged := sess
	return sess, Prompt{Kind: PromptConfirmTransaction, Staged: &staged}
}

func (m *Machine) handleConfirmTransaction(ctx context.Context, userID string, sess Session, input Input) (Session, Outcome) {
	staged := sess
	reprompt := Prompt{Kind: PromptConfirmTransaction, Staged: &staged}
	if _, ok := input.(Confirm); !ok {
		return sess, Rejected{Err: ErrUnexpectedInput, Reprompt: reprompt}
	}
	res, err := m.svc.Append(ctx, userID, sess.Direction, sess.Category, sess.Amount, sess.Description)
	if err != nil {
		return Session{}, Failed{Err: err}
	}
	return Session{}, TransactionCommitted{Result: res}
}

func (m *Machine) handleEnterCategoryName(ctx context.Context, userID string, sess Session, input Input) (Session, Outcome) {
	reprompt := Prompt{Kind: PromptCategoryName}
	text, ok := input.(Text)
	if !ok {
		return sess, Rejected{Err: ErrUnexpectedInput, Reprompt: reprompt}
	}
	if err := m.svc.AddCategory(ctx, userID, sess.Direction, text.Value); err != nil {
		return sess, Rejected{Err: err, Reprompt: reprompt}
	}
	return Session{}, CategoryAdded{Direction: sess.Direction, Name: strings.TrimSpace(text.Value)}
}

func (m *Machine) handleChooseCategoryToRename(ctx context.Context, userID string, sess Session, input Input) (Session, Outcome) {
	names, err := m.svc.Categories(ctx, userID, sess.Direction)
	if err != nil {
		return Session{}, Failed{Err: err}
	}
	reprompt := Prompt{Kind: PromptRenameSource, Choices: names}

	pick, ok := input.(PickCategory)
	if !ok {
		return sess, Rejected{Err: ErrUnexpectedInput, Reprompt: reprompt}
	}
	if !contains(names, pick.Name) {
		return sess, Rejected{Err: core.ErrCategoryNotFound, Reprompt: reprompt}
	}
	if pick.Name == core.FallbackCategory {
		return sess, Rejected{Err: core.ErrProtectedCategory, Reprompt: reprompt}
	}
	sess.RenameFrom = pick.Name
	sess.State = StateEnterRenamedCategory
	return sess, Prompt{Kind: PromptRenameTarget}
}

func (m *Machine) handleEnterRenamedCategory(ctx context.Context, userID string, sess Session, input Input) (Session, Outcome) {
	reprompt := Prompt{Kind: PromptRenameTarget}
	text, ok := input.(Text)
	if !ok {
		return sess, Rejected{Err: ErrUnexpectedInput, Reprompt: reprompt}
	}
	touched, err := m.svc.RenameCategory(ctx, userID, sess.Direction, sess.RenameFrom, text.Value)
	if err != nil {
		return sess, Rejected{Err: err, Reprompt: reprompt}
	}
	return Session{}, CategoryRenamed{
		Direction: sess.Direction,
		From:      sess.RenameFrom,
		To:        strings.TrimSpace(text.Value),
		Touched:   touched,
	}
}

func (m *Machine) handleChooseCategoryToRemove(ctx context.Context, userID string, sess Session, input Input) (Session, Outcome) {
	names, err := m.svc.Categories(ctx, userID, sess.Direction)
	if err != nil {
		return Session{}, Failed{Err: err}
	}
	reprompt := Prompt{Kind: PromptRemoveChoice, Choices: names}

	pick, ok := input.(PickCategory)
	if !ok {
		return sess, Rejected{Err: ErrUnexpectedInput, Reprompt: reprompt}
	}
	res, err := m.svc.RemoveCategory(ctx, userID, sess.Direction, pick.Name, false)
	if err != nil {
		return sess, Rejected{Err: err, Reprompt: reprompt}
	}
	if res.ConfirmationRequired {
		sess.Category = pick.Name
		sess.State = StateConfirmCategoryRemoval
		return sess, Prompt{Kind: PromptRemoveConfirm, UsageCount: res.UsageCount}
	}
	return Session{}, CategoryRemoved{Direction: sess.Direction, Name: pick.Name, Result: res}
}

func (m *Machine) handleConfirmCategoryRemoval(ctx context.Context, userID string, sess Session, input Input) (Session, Outcome) {
	reprompt := Prompt{Kind: PromptRemoveConfirm}
	if _, ok := input.(Confirm); !ok {
		return sess, Rejected{Err: ErrUnexpectedInput, Reprompt: reprompt}
	}
	res, err := m.svc.RemoveCategory(ctx, userID, sess.Direction, sess.Category, true)
	if err != nil {
		return Session{}, Failed{Err: err}
	}
	return Session{}, CategoryRemoved{Direction: sess.Direction, Name: sess.Category, Result: res}
}

func (m *Machine) handleEnterGoalValue(ctx context.Context, userID string, sess Session, input Input) (Session, Outcome) {
	reprompt := Prompt{Kind: PromptGoalValue}
	text, ok := input.(Text)
	if !ok {
		return sess, Rejected{Err: ErrUnexpectedInput, Reprompt: reprompt}
	}
	// Zero clears the goal.
	value, err := core.ParseBalance(text.Value)
	if err != nil {
		return sess, Rejected{Err: err, Reprompt: reprompt}
	}

	switch sess.GoalKind {
	case GoalSavings:
		err = m.svc.SetSavingsTarget(ctx, userID, value)
	case GoalSpendLimit:
		err = m.svc.SetSpendLimit(ctx, userID, value)
	}
	if err != nil {
		return Session{}, Failed{Err: err}
	}
	return Session{}, GoalSet{Kind: sess.GoalKind, Value: value}
}

func (m *Machine) handleEnterBalance(ctx context.Context, userID string, sess Session, input Input) (Session, Outcome) {
	reprompt := Prompt{Kind: PromptBalance}
	text, ok := input.(Text)
	if !ok {
		return sess, Rejected{Err: ErrUnexpectedInput, Reprompt: reprompt}
	}
	value, err := core.ParseBalance(text.Value)
	if err != nil {
		return sess, Rejected{Err: err, Reprompt: reprompt}
	}
	res, err := m.svc.AdjustBalance(ctx, userID, value)
	if err != nil {
		return Session{}, Failed{Err: err}
	}
	return Session{}, BalanceAdjusted{Result: res}
}

func (m *Machine) handleClosingConfirm(ctx context.Context, userID string, sess Session, input Input) (Session, Outcome) {
	kind := PromptClosingConfirm
	if sess.State == StateReconfirmClosing {
		kind = PromptClosingReconfirm
	}
	if _, ok := input.(Confirm); !ok {
		return sess, Rejected{Err: ErrUnexpectedInput, Reprompt: Prompt{Kind: kind, Closing: sess.Closing}}
	}
	if sess.Closing == nil {
		return Session{}, Failed{Err: ErrUnexpectedInput}
	}

	// The reconfirmation for an already-closed day is a separate step
	// before the regular confirmation.
	if sess.State == StateReconfirmClosing {
		preview, err := m.svc.PrepareClosing(ctx, userID)
		if err != nil {
			return Session{}, Failed{Err: err}
		}
		sess.State = StateConfirmClosing
		sess.Closing = &preview.Pending
		return sess, Prompt{Kind: PromptClosingConfirm, Closing: &preview.Pending}
	}

	rec, err := m.svc.ConfirmClosing(ctx, userID, *sess.Closing)
	if errors.Is(err, services.ErrClosingChanged) {
		// The day moved under the user. Show the fresh numbers and ask
		// for the confirmation again.
		sess.Closing = &rec
		return sess, Prompt{Kind: PromptClosingConfirm, Closing: &rec}
	}
	if err != nil {
		return Session{}, Failed{Err: err}
	}
	return Session{}, ClosingRecorded{Record: rec}
}

func (m *Machine) handleConfirmErase(ctx context.Context, userID string, sess Session, input Input) (Session, Outcome) {
	if _, ok := input.(Confirm); !ok {
		return sess, Rejected{Err: ErrUnexpectedInput, Reprompt: Prompt{Kind: PromptEraseConfirm}}
	}
	if err := m.svc.Erase(ctx, userID); err != nil {
		return Session{}, Failed{Err: err}
	}
	return Session{}, Erased{}
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
