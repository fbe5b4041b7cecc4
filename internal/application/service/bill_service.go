package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/conveyance-bills/internal/application/dispatcher"
	"github.com/garyjia/conveyance-bills/internal/application/port"
	"github.com/garyjia/conveyance-bills/internal/domain/entity"
	"github.com/garyjia/conveyance-bills/internal/domain/event"
	"github.com/garyjia/conveyance-bills/internal/domain/tripguard"
	"github.com/garyjia/conveyance-bills/internal/domain/workflow"
	"github.com/garyjia/conveyance-bills/pkg/utils"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// BillHeader holds the editable header fields of a bill
type BillHeader struct {
	CompanyName    string            `json:"company_name" validate:"required,max=200"`
	CompanyAddress string            `json:"company_address" validate:"max=500"`
	FormatType     entity.FormatType `json:"format_type" validate:"omitempty,oneof=BILL1 BILL2 BILL3 BILL4"`
	AmountInWords  string            `json:"amount_in_words" validate:"max=300"`
}

// ItemInput is one line item as supplied by the caller
type ItemInput struct {
	Date          time.Time       `json:"date" validate:"required"`
	From          string          `json:"from" validate:"required,max=200"`
	To            string          `json:"to" validate:"required,max=200"`
	Transport     string          `json:"transport" validate:"max=100"`
	Purpose       string          `json:"purpose" validate:"required,max=500"`
	Amount        decimal.Decimal `json:"amount"`
	AttachmentURL *string         `json:"attachment_url" validate:"omitempty,max=1000"`
}

// DraftInput creates or edits a bill. An empty BillID creates a new bill.
//
// Items follow replace semantics: nil keeps the bill's current items, a
// non-nil slice (even an empty one) replaces them.
type DraftInput struct {
	BillID string `json:"-"`

	// EmployeeRef names the owner of a new bill by user id or employee code.
	// Empty means the actor.
	EmployeeRef string `json:"employee" validate:"max=64"`

	// Header is required for new bills; nil keeps the current header
	Header  *BillHeader `json:"header"`
	Items   []ItemInput `json:"items" validate:"omitempty,dive"`
	Comment string      `json:"comment" validate:"max=1000"`
}

// Bill actions accepted by Act
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionForward = "forward"
)

// ActionInput is a supervisor, accounts or management decision on a bill
type ActionInput struct {
	Action    string `json:"action" validate:"required,oneof=approve reject forward"`
	Comment   string `json:"comment" validate:"max=1000"`
	ForwardTo string `json:"next_supervisor_id" validate:"required_if=Action forward"`
}

// BillDetail is a bill with everything a reader needs to act on it
type BillDetail struct {
	*entity.Bill
	Owner          entity.UserRef     `json:"owner"`
	AllowedActions []workflow.Trigger `json:"allowed_actions"`
}

// BillService runs the bill lifecycle. Every write is one transaction.
type BillService interface {
	SaveDraft(ctx context.Context, actor entity.Actor, in DraftInput) (*entity.Bill, error)
	Submit(ctx context.Context, actor entity.Actor, in DraftInput) (*entity.Bill, error)
	Act(ctx context.Context, actor entity.Actor, billID string, in ActionInput) (*entity.Bill, error)
	RequestPayment(ctx context.Context, actor entity.Actor, billID, comment string) (*entity.Bill, error)
	ConfirmPayment(ctx context.Context, actor entity.Actor, billID, comment string) (*entity.Bill, error)
	DeleteDraft(ctx context.Context, actor entity.Actor, billID string) error

	Get(ctx context.Context, actor entity.Actor, billID string) (*BillDetail, error)
	List(ctx context.Context, actor entity.Actor) ([]*entity.Bill, error)
	ListDrafts(ctx context.Context, actor entity.Actor) ([]*entity.Bill, error)
	PendingCount(ctx context.Context, actor entity.Actor) (int, error)
}

type billServiceImpl struct {
	users     port.UserRepository
	bills     port.BillRepository
	items     port.ItemRepository
	history   port.HistoryRepository
	txManager port.TransactionManager

	guard      *tripguard.Guard
	engine     *workflow.Engine
	dispatcher dispatcher.Dispatcher
	cache      port.PendingCountCache
	logger     Logger
	now        func() time.Time
}

// BillOption configures optional BillService collaborators
type BillOption func(*billServiceImpl)

// WithDispatcher publishes bill events after each committed write
func WithDispatcher(d dispatcher.Dispatcher) BillOption {
	return func(s *billServiceImpl) {
		s.dispatcher = d
	}
}

// WithPendingCountCache serves PendingCount through cache
func WithPendingCountCache(cache port.PendingCountCache) BillOption {
	return func(s *billServiceImpl) {
		s.cache = cache
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) BillOption {
	return func(s *billServiceImpl) {
		s.now = now
	}
}

// NewBillService creates a new BillService
func NewBillService(
	users port.UserRepository,
	bills port.BillRepository,
	items port.ItemRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	logger Logger,
	opts ...BillOption,
) BillService {
	s := &billServiceImpl{
		users:     users,
		bills:     bills,
		items:     items,
		history:   history,
		txManager: txManager,
		guard:     tripguard.New(items),
		engine:    workflow.NewEngine(),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// billState is a bill loaded for a write
type billState struct {
	bill    *entity.Bill
	owner   *entity.User
	history []entity.BillHistory
	isNew   bool
}

func (st *billState) snapshot() workflow.Snapshot {
	return workflow.Snapshot{Bill: *st.bill, Owner: *st.owner, History: st.history}
}

// SaveDraft creates a DRAFT bill or edits an editable one without changing its status
func (s *billServiceImpl) SaveDraft(ctx context.Context, actor entity.Actor, in DraftInput) (*entity.Bill, error) {
	if err := validateDraft(in); err != nil {
		return nil, err
	}

	var result *entity.Bill
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		now := s.timestamp()

		me, err := s.actorUser(txCtx, actor)
		if err != nil {
			return err
		}
		st, err := s.prepare(txCtx, me, in, now)
		if err != nil {
			return err
		}

		items, replace, err := s.itemsFor(txCtx, st, in.Items)
		if err != nil {
			return err
		}
		if replace {
			if err := s.guard.CheckNoDuplicates(txCtx, st.owner.ID, tripguard.CandidatesFromItems(items), st.bill.ID); err != nil {
				return err
			}
		}

		applyHeader(st.bill, in.Header)
		st.bill.Amount = entity.SumItems(items)
		st.bill.UpdatedAt = now

		if err := s.writeBill(txCtx, st, items, replace); err != nil {
			return err
		}

		entry := workflow.Entry{
			Status:  st.bill.Status,
			Action:  entity.ActionDraftUpdated,
			ActorID: actor.ID,
			Comment: orDefault(in.Comment, "Draft updated"),
		}
		if st.isNew {
			entry.Action = entity.ActionDraftSaved
			entry.Comment = orDefault(in.Comment, "Draft saved")
		}
		if err := s.appendEntries(txCtx, st.bill.ID, []workflow.Entry{entry}, now); err != nil {
			return err
		}

		result, err = s.assemble(txCtx, st.bill)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to save draft", "error", err, "bill_id", in.BillID, "actor_id", actor.ID)
		return nil, err
	}

	s.logger.Info("Draft saved", "bill_id", result.ID, "actor_id", actor.ID, "status", result.Status)
	s.publish(ctx, event.NewEvent(event.TypeDraftSaved, result.ID, actor.ID, map[string]interface{}{
		event.KeyOwnerID:  result.EmployeeID,
		event.KeyToStatus: result.Status.String(),
	}))
	return result, nil
}

// Submit saves the bill and moves it to SUBMITTED, or straight to
// APPROVED_BY_SUPERVISOR when the submitter qualifies for auto-approval
func (s *billServiceImpl) Submit(ctx context.Context, actor entity.Actor, in DraftInput) (*entity.Bill, error) {
	if err := validateDraft(in); err != nil {
		return nil, err
	}

	var result *entity.Bill
	var decision *workflow.Decision
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		now := s.timestamp()

		me, err := s.actorUser(txCtx, actor)
		if err != nil {
			return err
		}
		st, err := s.prepare(txCtx, me, in, now)
		if err != nil {
			return err
		}

		items, replace, err := s.itemsFor(txCtx, st, in.Items)
		if err != nil {
			return err
		}
		if err := s.guard.CheckNoDuplicates(txCtx, st.owner.ID, tripguard.CandidatesFromItems(items), st.bill.ID); err != nil {
			return err
		}

		decision, err = s.engine.Decide(st.snapshot(), workflow.Request{
			Trigger:   workflow.TriggerSubmit,
			Actor:     actor,
			ActorUser: me,
			Comment:   in.Comment,
		})
		if err != nil {
			return err
		}

		applyHeader(st.bill, in.Header)
		st.bill.Amount = entity.SumItems(items)
		st.bill.UpdatedAt = now
		st.bill.Status = decision.To
		st.bill.SupervisorID = decision.SupervisorID

		if err := s.writeBill(txCtx, st, items, replace); err != nil {
			return err
		}
		if !st.isNew {
			if err := s.bills.SetStatus(txCtx, st.bill.ID, decision.To, decision.SupervisorID, now); err != nil {
				return fmt.Errorf("set status: %w", err)
			}
		}
		if err := s.appendEntries(txCtx, st.bill.ID, decision.Entries, now); err != nil {
			return err
		}

		result, err = s.assemble(txCtx, st.bill)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to submit bill", "error", err, "bill_id", in.BillID, "actor_id", actor.ID)
		return nil, err
	}

	s.logger.Info("Bill submitted",
		"bill_id", result.ID,
		"actor_id", actor.ID,
		"trigger", decision.Trigger,
		"status", result.Status,
	)
	s.publish(ctx, decisionEvent(event.TypeSubmitted, result, actor, decision))
	return result, nil
}

// Act approves, rejects or forwards a bill
func (s *billServiceImpl) Act(ctx context.Context, actor entity.Actor, billID string, in ActionInput) (*entity.Bill, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	req := workflow.Request{Actor: actor, Comment: strings.TrimSpace(in.Comment)}
	switch in.Action {
	case ActionApprove:
		req.Trigger = workflow.TriggerApprove
	case ActionReject:
		req.Trigger = workflow.TriggerReject
	case ActionForward:
		req.Trigger = workflow.TriggerForward
	default:
		return nil, newValidationError("action", "must be one of [approve reject forward]")
	}

	return s.transition(ctx, billID, req, in.ForwardTo)
}

// RequestPayment records that accounts asked the owner to confirm payment
func (s *billServiceImpl) RequestPayment(ctx context.Context, actor entity.Actor, billID, comment string) (*entity.Bill, error) {
	return s.transition(ctx, billID, workflow.Request{
		Trigger: workflow.TriggerRequestPayment,
		Actor:   actor,
		Comment: strings.TrimSpace(comment),
	}, "")
}

// ConfirmPayment lets the owner mark the bill PAID
func (s *billServiceImpl) ConfirmPayment(ctx context.Context, actor entity.Actor, billID, comment string) (*entity.Bill, error) {
	return s.transition(ctx, billID, workflow.Request{
		Trigger: workflow.TriggerConfirmPayment,
		Actor:   actor,
		Comment: strings.TrimSpace(comment),
	}, "")
}

func (s *billServiceImpl) transition(ctx context.Context, billID string, req workflow.Request, forwardTo string) (*entity.Bill, error) {
	actor := req.Actor

	var result *entity.Bill
	var decision *workflow.Decision
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		now := s.timestamp()

		me, err := s.actorUser(txCtx, actor)
		if err != nil {
			return err
		}
		req.ActorUser = me

		st, err := s.load(txCtx, billID, true)
		if err != nil {
			return err
		}

		if req.Trigger == workflow.TriggerForward {
			target, err := s.users.GetByID(txCtx, forwardTo)
			if err != nil {
				return notFound("supervisor", forwardTo, err)
			}
			req.ForwardTo = target
		}

		decision, err = s.engine.Decide(st.snapshot(), req)
		if err != nil {
			return err
		}

		if err := s.bills.SetStatus(txCtx, billID, decision.To, decision.SupervisorID, now); err != nil {
			return fmt.Errorf("set status: %w", err)
		}
		if err := s.appendEntries(txCtx, billID, decision.Entries, now); err != nil {
			return err
		}

		st.bill.Status = decision.To
		st.bill.SupervisorID = decision.SupervisorID
		st.bill.UpdatedAt = now
		result, err = s.assemble(txCtx, st.bill)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to apply bill action",
			"error", err,
			"bill_id", billID,
			"actor_id", actor.ID,
			"trigger", req.Trigger,
		)
		return nil, err
	}

	s.logger.Info("Bill action applied",
		"bill_id", billID,
		"actor_id", actor.ID,
		"trigger", decision.Trigger,
		"from", decision.From,
		"to", decision.To,
	)

	typ := event.TypeStatusChanged
	switch decision.Trigger {
	case workflow.TriggerForward:
		typ = event.TypeForwarded
	case workflow.TriggerRequestPayment:
		typ = event.TypePaymentRequested
	}
	s.publish(ctx, decisionEvent(typ, result, actor, decision))
	return result, nil
}

// DeleteDraft removes a DRAFT bill with its items and history
func (s *billServiceImpl) DeleteDraft(ctx context.Context, actor entity.Actor, billID string) error {
	var ownerID string
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.actorUser(txCtx, actor); err != nil {
			return err
		}

		st, err := s.load(txCtx, billID, true)
		if err != nil {
			return err
		}
		if st.bill.Status != entity.StatusDraft {
			return fmt.Errorf("%w: bill %s is %s, only drafts can be deleted", ErrNotEditable, billID, st.bill.Status)
		}
		if actor.ID != st.owner.ID && !st.owner.ReportsTo(actor.ID) {
			return fmt.Errorf("%w: only the owner or the owner's supervisor may delete a draft", workflow.ErrUnauthorized)
		}

		ownerID = st.owner.ID
		if err := s.bills.Delete(txCtx, billID); err != nil {
			return fmt.Errorf("delete bill: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to delete draft", "error", err, "bill_id", billID, "actor_id", actor.ID)
		return err
	}

	s.logger.Info("Draft deleted", "bill_id", billID, "actor_id", actor.ID)
	s.publish(ctx, event.NewEvent(event.TypeDeleted, billID, actor.ID, map[string]interface{}{
		event.KeyOwnerID: ownerID,
	}))
	return nil
}

// Get returns a bill with items, history and the actions the actor may take.
// Employees only see their own bills.
func (s *billServiceImpl) Get(ctx context.Context, actor entity.Actor, billID string) (*BillDetail, error) {
	me, err := s.actorUser(ctx, actor)
	if err != nil {
		return nil, err
	}

	st, err := s.load(ctx, billID, false)
	if err != nil {
		return nil, err
	}
	if actor.Role == entity.RoleEmployee && !st.bill.IsOwnedBy(actor.ID) {
		return nil, fmt.Errorf("%w: bill %s belongs to another employee", workflow.ErrUnauthorized, billID)
	}

	items, err := s.items.ListByBill(ctx, billID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	st.bill.Items = items
	st.bill.History = st.history

	return &BillDetail{
		Bill: st.bill,
		Owner: entity.UserRef{
			ID:           st.owner.ID,
			Name:         st.owner.Name,
			Role:         st.owner.Role,
			SupervisorID: st.owner.SupervisorID,
		},
		AllowedActions: s.engine.Allowed(st.snapshot(), actor, me),
	}, nil
}

// List returns the bills in the actor's role listing, newest first
func (s *billServiceImpl) List(ctx context.Context, actor entity.Actor) ([]*entity.Bill, error) {
	if !actor.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", workflow.ErrUnauthorized, actor.Role)
	}
	bills, err := s.bills.ListForActor(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return bills, nil
}

// ListDrafts returns the actor's own drafts, newest first
func (s *billServiceImpl) ListDrafts(ctx context.Context, actor entity.Actor) ([]*entity.Bill, error) {
	bills, err := s.bills.ListDrafts(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	return bills, nil
}

// PendingCount returns how many bills wait on the actor. Cache failures fall
// back to the repository.
func (s *billServiceImpl) PendingCount(ctx context.Context, actor entity.Actor) (int, error) {
	if !actor.Role.IsValid() {
		return 0, fmt.Errorf("%w: unknown role %q", workflow.ErrUnauthorized, actor.Role)
	}

	if s.cache != nil {
		n, ok, err := s.cache.Get(ctx, actor.ID)
		if err != nil {
			s.logger.Error("Pending count cache read failed", "error", err, "user_id", actor.ID)
		} else if ok {
			return n, nil
		}
	}

	n, err := s.bills.CountPending(ctx, actor)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, actor.ID, n); err != nil {
			s.logger.Error("Pending count cache write failed", "error", err, "user_id", actor.ID)
		}
	}
	return n, nil
}

// actorUser loads the actor's record and checks it matches the claimed role
func (s *billServiceImpl) actorUser(ctx context.Context, actor entity.Actor) (*entity.User, error) {
	if !actor.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", workflow.ErrUnauthorized, actor.Role)
	}
	me, err := s.users.GetByID(ctx, actor.ID)
	if errors.Is(err, port.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown user %s", workflow.ErrUnauthorized, actor.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load actor: %w", err)
	}
	if me.Role != actor.Role {
		return nil, fmt.Errorf("%w: user %s does not have role %s", workflow.ErrUnauthorized, actor.ID, actor.Role)
	}
	return me, nil
}

// load reads a bill with its owner and history. lock takes row locks on the
// bill and the owner so concurrent writers for the same employee serialize.
func (s *billServiceImpl) load(ctx context.Context, billID string, lock bool) (*billState, error) {
	bill, err := s.bills.GetByID(ctx, billID, lock)
	if err != nil {
		return nil, notFound("bill", billID, err)
	}
	owner, err := s.users.GetByID(ctx, bill.EmployeeID)
	if err != nil {
		return nil, notFound("bill owner", bill.EmployeeID, err)
	}
	if lock {
		if err := s.users.LockUser(ctx, owner.ID); err != nil {
			return nil, fmt.Errorf("lock owner: %w", err)
		}
	}
	history, err := s.history.ListByBill(ctx, billID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return &billState{bill: bill, owner: owner, history: history}, nil
}

// prepare returns the bill a draft or submit writes to, enforcing ownership
// and the editable-status policy
func (s *billServiceImpl) prepare(ctx context.Context, me *entity.User, in DraftInput, now time.Time) (*billState, error) {
	if in.BillID == "" {
		if in.Header == nil {
			return nil, newValidationError("header", "is required")
		}
		owner, err := s.resolveOwner(ctx, me, strings.TrimSpace(in.EmployeeRef))
		if err != nil {
			return nil, err
		}
		if err := s.users.LockUser(ctx, owner.ID); err != nil {
			return nil, fmt.Errorf("lock owner: %w", err)
		}
		return &billState{
			bill: &entity.Bill{
				ID:         uuid.NewString(),
				EmployeeID: owner.ID,
				FormatType: entity.FormatBill1,
				Amount:     decimal.Zero,
				Status:     entity.StatusDraft,
				CreatedAt:  now,
				UpdatedAt:  now,
			},
			owner: owner,
			isNew: true,
		}, nil
	}

	st, err := s.load(ctx, in.BillID, true)
	if err != nil {
		return nil, err
	}
	if !st.bill.Status.IsEditable() {
		return nil, fmt.Errorf("%w: bill %s is %s", ErrNotEditable, st.bill.ID, st.bill.Status)
	}
	if err := canEdit(me, st.owner); err != nil {
		return nil, err
	}
	if ref := strings.TrimSpace(in.EmployeeRef); ref != "" && !refersTo(ref, st.owner) {
		return nil, newValidationError("employee", "cannot change the owner of an existing bill")
	}
	return st, nil
}

// resolveOwner decides whose bill a new draft is. Employees only create their
// own bills; supervisors may create bills for anyone in the supervisor tree.
func (s *billServiceImpl) resolveOwner(ctx context.Context, me *entity.User, ref string) (*entity.User, error) {
	if ref == "" || refersTo(ref, me) {
		if !me.Role.InSupervisorTree() {
			return nil, fmt.Errorf("%w: role %s may not own bills", workflow.ErrUnauthorized, me.Role)
		}
		return me, nil
	}

	if me.Role != entity.RoleSupervisor {
		return nil, fmt.Errorf("%w: role %s may only create bills for themself", workflow.ErrUnauthorized, me.Role)
	}

	owner, err := resolveUser(ctx, s.users, ref)
	if err != nil {
		return nil, err
	}
	if !owner.Role.InSupervisorTree() {
		return nil, fmt.Errorf("%w: %s users do not own bills", workflow.ErrUnauthorized, owner.Role)
	}
	return owner, nil
}

func canEdit(me, owner *entity.User) error {
	if !owner.Role.InSupervisorTree() {
		return fmt.Errorf("%w: %s users do not own bills", workflow.ErrUnauthorized, owner.Role)
	}
	if me.ID == owner.ID || me.Role == entity.RoleSupervisor {
		return nil
	}
	return fmt.Errorf("%w: %s may not edit bills of %s", workflow.ErrUnauthorized, me.ID, owner.ID)
}

func refersTo(ref string, u *entity.User) bool {
	if ref == u.ID {
		return true
	}
	return u.EmployeeCode != nil && strings.EqualFold(ref, *u.EmployeeCode)
}

// itemsFor returns the bill's final item set and whether it replaces the stored one
func (s *billServiceImpl) itemsFor(ctx context.Context, st *billState, inputs []ItemInput) ([]entity.BillItem, bool, error) {
	if inputs == nil {
		if st.isNew {
			return []entity.BillItem{}, false, nil
		}
		existing, err := s.items.ListByBill(ctx, st.bill.ID)
		if err != nil {
			return nil, false, fmt.Errorf("list items: %w", err)
		}
		return existing, false, nil
	}

	items := make([]entity.BillItem, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, entity.BillItem{
			BillID:        st.bill.ID,
			Date:          in.Date.UTC(),
			From:          utils.SanitizeString(in.From),
			To:            utils.SanitizeString(in.To),
			Transport:     utils.SanitizeString(in.Transport),
			Purpose:       utils.SanitizeString(in.Purpose),
			Amount:        in.Amount,
			AttachmentURL: trimmedOrNil(in.AttachmentURL),
		})
	}
	return items, true, nil
}

// writeBill persists the header and, when replace is set, the items
func (s *billServiceImpl) writeBill(ctx context.Context, st *billState, items []entity.BillItem, replace bool) error {
	if st.isNew {
		if err := s.bills.Create(ctx, st.bill); err != nil {
			return fmt.Errorf("create bill: %w", err)
		}
	} else if err := s.bills.UpdateHeader(ctx, st.bill); err != nil {
		return fmt.Errorf("update bill: %w", err)
	}

	if replace {
		if err := s.items.ReplaceForBill(ctx, st.bill.ID, items); err != nil {
			return fmt.Errorf("replace items: %w", err)
		}
	}
	return nil
}

func (s *billServiceImpl) appendEntries(ctx context.Context, billID string, entries []workflow.Entry, at time.Time) error {
	for _, e := range entries {
		actorID := e.ActorID
		h := &entity.BillHistory{
			BillID:    billID,
			Status:    e.Status,
			Action:    e.Action,
			ActorID:   &actorID,
			Comment:   e.Comment,
			Timestamp: at,
		}
		if err := s.history.Append(ctx, h); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
	}
	return nil
}

// assemble reloads items and history so callers see what was committed
func (s *billServiceImpl) assemble(ctx context.Context, bill *entity.Bill) (*entity.Bill, error) {
	items, err := s.items.ListByBill(ctx, bill.ID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	history, err := s.history.ListByBill(ctx, bill.ID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	out := *bill
	out.Items = items
	out.History = history
	return &out, nil
}

func (s *billServiceImpl) publish(ctx context.Context, evt *event.Event) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.DispatchAsync(ctx, evt)
}

// timestamp is the write time for one operation. Postgres keeps microseconds.
func (s *billServiceImpl) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func validateDraft(in DraftInput) error {
	if err := validateInput(in); err != nil {
		return err
	}
	for i, it := range in.Items {
		if it.Amount.IsNegative() {
			return newValidationError(fmt.Sprintf("items[%d].amount", i), "must not be negative")
		}
	}
	return nil
}

func applyHeader(bill *entity.Bill, h *BillHeader) {
	if h == nil {
		return
	}
	bill.CompanyName = utils.SanitizeString(h.CompanyName)
	bill.CompanyAddress = utils.SanitizeString(h.CompanyAddress)
	bill.AmountInWords = utils.SanitizeString(h.AmountInWords)
	if h.FormatType != "" {
		bill.FormatType = h.FormatType
	}
}

func decisionEvent(typ event.Type, bill *entity.Bill, actor entity.Actor, d *workflow.Decision) *event.Event {
	payload := map[string]interface{}{
		event.KeyFromStatus: d.From.String(),
		event.KeyToStatus:   d.To.String(),
		event.KeyOwnerID:    bill.EmployeeID,
		event.KeyTrigger:    d.Trigger.String(),
	}
	if d.SupervisorID != nil {
		payload[event.KeySupervisorID] = *d.SupervisorID
	}
	return event.NewEvent(typ, bill.ID, actor.ID, payload)
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}
