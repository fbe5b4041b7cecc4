package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/conveyance-bills/internal/application/port"
	"github.com/garyjia/conveyance-bills/internal/domain/entity"
)

type txMarker struct{}

// memStore is an in-memory implementation of every repository port. Each
// transaction holds an exclusive lock and restores a snapshot on error, which
// mirrors an immediate-mode SQLite transaction.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users   map[string]entity.User
	bills   map[string]entity.Bill
	items   map[string][]entity.BillItem
	history map[string][]entity.BillHistory

	nextItemID    int64
	nextHistoryID int64

	// appendErr, when set, fails every history append
	appendErr error
	locked    []string
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[string]entity.User{},
		bills:   map[string]entity.Bill{},
		items:   map[string][]entity.BillItem{},
		history: map[string][]entity.BillHistory{},
	}
}

type memState struct {
	users         map[string]entity.User
	bills         map[string]entity.Bill
	items         map[string][]entity.BillItem
	history       map[string][]entity.BillHistory
	nextItemID    int64
	nextHistoryID int64
}

func (m *memStore) save() memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := memState{
		users:         make(map[string]entity.User, len(m.users)),
		bills:         make(map[string]entity.Bill, len(m.bills)),
		items:         make(map[string][]entity.BillItem, len(m.items)),
		history:       make(map[string][]entity.BillHistory, len(m.history)),
		nextItemID:    m.nextItemID,
		nextHistoryID: m.nextHistoryID,
	}
	for k, v := range m.users {
		st.users[k] = v
	}
	for k, v := range m.bills {
		st.bills[k] = v
	}
	for k, v := range m.items {
		st.items[k] = append([]entity.BillItem(nil), v...)
	}
	for k, v := range m.history {
		st.history[k] = append([]entity.BillHistory(nil), v...)
	}
	return st
}

func (m *memStore) restore(st memState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users, m.bills, m.items, m.history = st.users, st.bills, st.items, st.history
	m.nextItemID, m.nextHistoryID = st.nextItemID, st.nextHistoryID
}

// TransactionManager

func (m *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snapshot := m.save()
	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

// seeding helpers

func (m *memStore) addUser(u entity.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *memStore) addBill(b entity.Bill, items []entity.BillItem, history []entity.BillHistory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.Items, b.History = nil, nil
	m.bills[b.ID] = b
	for i := range items {
		m.nextItemID++
		items[i].ID = m.nextItemID
		items[i].BillID = b.ID
	}
	m.items[b.ID] = items
	for i := range history {
		m.nextHistoryID++
		history[i].ID = m.nextHistoryID
		history[i].BillID = b.ID
	}
	m.history[b.ID] = history
}

func (m *memStore) billCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bills)
}

func (m *memStore) bill(id string) entity.Bill {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bills[id]
}

func (m *memStore) historyOf(id string) []entity.BillHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entity.BillHistory(nil), m.history[id]...)
}

// UserRepository

func (m *memStore) Create(ctx context.Context, u *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.users {
		if other.Email == u.Email {
			return port.ErrConflict
		}
	}
	m.users[u.ID] = *u
	return nil
}

func (m *memStore) Update(ctx context.Context, u *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return port.ErrNotFound
	}
	m.users[u.ID] = *u
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return &u, nil
}

func (m *memStore) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, port.ErrNotFound
}

func (m *memStore) GetByEmployeeCode(ctx context.Context, code string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.EmployeeCode != nil && *u.EmployeeCode == code {
			u := u
			return &u, nil
		}
	}
	return nil, port.ErrNotFound
}

func (m *memStore) ListByRole(ctx context.Context, role entity.Role) ([]*entity.User, error) {
	return m.listUsers(func(u entity.User) bool { return u.Role == role }), nil
}

func (m *memStore) ListDirectReports(ctx context.Context, supervisorID string) ([]*entity.User, error) {
	return m.listUsers(func(u entity.User) bool { return u.ReportsTo(supervisorID) }), nil
}

func (m *memStore) listUsers(keep func(entity.User) bool) []*entity.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*entity.User{}
	for _, u := range m.users {
		if keep(u) {
			u := u
			out = append(out, &u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *memStore) LockUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = append(m.locked, id)
	return nil
}

// the bill, item and history repositories share method names with the user
// repository, so they are exposed through thin views

type memBills struct{ *memStore }
type memItems struct{ *memStore }
type memHistory struct{ *memStore }

func (b memBills) Create(ctx context.Context, bill *entity.Bill) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	stored := *bill
	stored.Items, stored.History = nil, nil
	b.bills[bill.ID] = stored
	return nil
}

func (b memBills) UpdateHeader(ctx context.Context, bill *entity.Bill) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.bills[bill.ID]
	if !ok {
		return port.ErrNotFound
	}
	cur.CompanyName = bill.CompanyName
	cur.CompanyAddress = bill.CompanyAddress
	cur.FormatType = bill.FormatType
	cur.Amount = bill.Amount
	cur.AmountInWords = bill.AmountInWords
	cur.UpdatedAt = bill.UpdatedAt
	b.bills[bill.ID] = cur
	return nil
}

func (b memBills) SetStatus(ctx context.Context, billID string, status entity.BillStatus, supervisorID *string, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.bills[billID]
	if !ok {
		return port.ErrNotFound
	}
	cur.Status = status
	cur.SupervisorID = supervisorID
	cur.UpdatedAt = at
	b.bills[billID] = cur
	return nil
}

func (b memBills) GetByID(ctx context.Context, id string, forUpdate bool) (*entity.Bill, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bill, ok := b.bills[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return &bill, nil
}

func (b memBills) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.bills[id]; !ok {
		return port.ErrNotFound
	}
	delete(b.bills, id)
	delete(b.items, id)
	delete(b.history, id)
	return nil
}

func (b memBills) ListForActor(ctx context.Context, actor entity.Actor) ([]*entity.Bill, error) {
	return b.listBills(func(bill entity.Bill, owner entity.User) bool {
		switch actor.Role {
		case entity.RoleEmployee:
			return bill.EmployeeID == actor.ID
		case entity.RoleSupervisor:
			return bill.EmployeeID == actor.ID || owner.ReportsTo(actor.ID) ||
				(bill.SupervisorID != nil && *bill.SupervisorID == actor.ID)
		case entity.RoleAccounts:
			return bill.Status == entity.StatusApprovedBySupervisor || bill.Status == entity.StatusApprovedByManagement
		case entity.RoleManagement:
			return bill.Status == entity.StatusApprovedByAccounts
		default:
			return false
		}
	}), nil
}

func (b memBills) ListDrafts(ctx context.Context, employeeID string) ([]*entity.Bill, error) {
	return b.listBills(func(bill entity.Bill, _ entity.User) bool {
		return bill.EmployeeID == employeeID && bill.Status == entity.StatusDraft
	}), nil
}

func (b memBills) CountPending(ctx context.Context, actor entity.Actor) (int, error) {
	bills := b.listBills(func(bill entity.Bill, owner entity.User) bool {
		switch actor.Role {
		case entity.RoleSupervisor:
			if bill.Status != entity.StatusSubmitted {
				return false
			}
			if bill.SupervisorID != nil {
				return *bill.SupervisorID == actor.ID
			}
			return owner.ReportsTo(actor.ID)
		case entity.RoleAccounts:
			return bill.Status == entity.StatusApprovedBySupervisor || bill.Status == entity.StatusApprovedByManagement
		case entity.RoleManagement:
			return bill.Status == entity.StatusApprovedByAccounts
		case entity.RoleEmployee:
			switch bill.Status {
			case entity.StatusSubmitted, entity.StatusApprovedBySupervisor,
				entity.StatusApprovedByAccounts, entity.StatusApprovedByManagement:
				return bill.EmployeeID == actor.ID
			}
			return false
		default:
			return false
		}
	})
	return len(bills), nil
}

func (b memBills) listBills(keep func(entity.Bill, entity.User) bool) []*entity.Bill {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []*entity.Bill{}
	for _, bill := range b.bills {
		if keep(bill, b.users[bill.EmployeeID]) {
			bill := bill
			out = append(out, &bill)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

func (it memItems) ReplaceForBill(ctx context.Context, billID string, items []entity.BillItem) error {
	it.mu.Lock()
	defer it.mu.Unlock()
	stored := make([]entity.BillItem, len(items))
	for i := range items {
		it.nextItemID++
		items[i].ID = it.nextItemID
		items[i].BillID = billID
		stored[i] = items[i]
	}
	it.items[billID] = stored
	return nil
}

func (it memItems) ListByBill(ctx context.Context, billID string) ([]entity.BillItem, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	out := append([]entity.BillItem{}, it.items[billID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (it memItems) FindForEmployeeOnDay(ctx context.Context, employeeID string, dayStart, dayEnd time.Time, excludeBillID string) ([]entity.ClaimedItem, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	var out []entity.ClaimedItem
	for id, bill := range it.bills {
		if bill.EmployeeID != employeeID || id == excludeBillID {
			continue
		}
		for _, item := range it.items[id] {
			if !item.Date.Before(dayStart) && item.Date.Before(dayEnd) {
				out = append(out, entity.ClaimedItem{BillItem: item, BillStatus: bill.Status})
			}
		}
	}
	return out, nil
}

func (h memHistory) Append(ctx context.Context, row *entity.BillHistory) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.appendErr != nil {
		return h.appendErr
	}
	h.nextHistoryID++
	row.ID = h.nextHistoryID
	stored := *row
	stored.Actor = nil
	h.history[row.BillID] = append(h.history[row.BillID], stored)
	return nil
}

func (h memHistory) ListByBill(ctx context.Context, billID string) ([]entity.BillHistory, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := append([]entity.BillHistory{}, h.history[billID]...)
	for i := range out {
		if out[i].ActorID == nil {
			continue
		}
		if u, ok := h.users[*out[i].ActorID]; ok {
			out[i].Actor = &entity.UserRef{ID: u.ID, Name: u.Name, Role: u.Role, SupervisorID: u.SupervisorID}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[j].After(&out[i]) })
	return out, nil
}

var (
	_ port.UserRepository     = (*memStore)(nil)
	_ port.TransactionManager = (*memStore)(nil)
	_ port.BillRepository     = memBills{}
	_ port.ItemRepository     = memItems{}
	_ port.HistoryRepository  = memHistory{}
)
