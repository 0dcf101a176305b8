package library

import (
	"sort"
	"time"
)

// Reports is read-only aggregation over the ledger, users and loans. Loan
// reads go through LoanBook listings, so they observe the expiry sweep.
type Reports struct {
	ledger *Ledger
	users  *Directory
	loans  *LoanBook
	sols   *SolicitationDesk
	clock  Clock
}

func NewReports(ledger *Ledger, users *Directory, loans *LoanBook, sols *SolicitationDesk, clock Clock) *Reports {
	if clock == nil {
		clock = realClock{}
	}
	return &Reports{ledger: ledger, users: users, loans: loans, sols: sols, clock: clock}
}

// LoanView is a loan with its user and tool references resolved for display.
type LoanView struct {
	LoanID          int64
	Status          LoanStatus
	UserID          int64
	UserName        string
	Phone           string
	ToolID          int64
	ToolName        string
	Quantity        int
	StartedAt       time.Time
	EstimatedReturn time.Time
	ActualReturn    *time.Time
	DaysOverdue     int
	Remarks         string
}

type Summary struct {
	Tools                int
	ActiveTools          int
	Users                int
	ActiveUsers          int
	OutstandingLoans     int
	ExpiredLoans         int
	PendingSolicitations int
	TotalUnits           int
	LentUnits            int
	EstimatedValue       float64
}

// UserActivity is a user with the number of loans they have ever had.
type UserActivity struct {
	UserID int64
	Name   string
	Phone  string
	Loans  int
}

// Discrepancy is one broken inventory invariant found by Reconcile.
type Discrepancy struct {
	ToolID      int64
	Total       int
	Available   int
	Outstanding int
	Reason      string
}

func (r *Reports) Summary() (Summary, error) {
	var s Summary
	tools, err := r.ledger.List(true)
	if err != nil {
		return s, err
	}
	users, err := r.users.List(true)
	if err != nil {
		return s, err
	}
	loans, err := r.loans.List("")
	if err != nil {
		return s, err
	}
	pending, err := r.sols.List(SolicitationPending)
	if err != nil {
		return s, err
	}

	s.Tools = len(tools)
	for _, t := range tools {
		if !t.IsActive {
			continue
		}
		s.ActiveTools++
		s.TotalUnits += t.TotalQuantity
		s.LentUnits += t.Lent()
		s.EstimatedValue += t.EstimatedValue * float64(t.TotalQuantity)
	}
	s.Users = len(users)
	for _, u := range users {
		if u.IsActive {
			s.ActiveUsers++
		}
	}
	for _, l := range loans {
		if l.Status.Outstanding() {
			s.OutstandingLoans++
		}
		if l.Status == LoanExpired {
			s.ExpiredLoans++
		}
	}
	s.PendingSolicitations = len(pending)
	return s, nil
}

// LowStock lists non-retired tools with at most limit units available.
func (r *Reports) LowStock(limit int) ([]Tool, error) {
	tools, err := r.ledger.List(false)
	if err != nil {
		return nil, err
	}
	out := []Tool{}
	for _, t := range tools {
		if t.AvailableQuantity <= limit {
			out = append(out, t)
		}
	}
	return out, nil
}

// MostRequested returns up to n tools by request count, ties by id.
func (r *Reports) MostRequested(n int) ([]Tool, error) {
	tools, err := r.ledger.List(false)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tools, func(i, j int) bool {
		if tools[i].RequestCount != tools[j].RequestCount {
			return tools[i].RequestCount > tools[j].RequestCount
		}
		return tools[i].ID < tools[j].ID
	})
	if n > 0 && len(tools) > n {
		tools = tools[:n]
	}
	return tools, nil
}

// MostActiveUsers returns up to n active users by loan count, ties by id.
// Users who never borrowed are left out.
func (r *Reports) MostActiveUsers(n int) ([]UserActivity, error) {
	users, err := r.users.List(false)
	if err != nil {
		return nil, err
	}
	loans, err := r.loans.List("")
	if err != nil {
		return nil, err
	}
	counts := make(map[int64]int)
	for _, l := range loans {
		counts[l.UserID]++
	}
	var out []UserActivity
	for _, u := range users {
		if c := counts[u.ID]; c > 0 {
			out = append(out, UserActivity{UserID: u.ID, Name: u.FullName(), Phone: u.Phone, Loans: c})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Loans != out[j].Loans {
			return out[i].Loans > out[j].Loans
		}
		return out[i].UserID < out[j].UserID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (r *Reports) ActiveLoans() ([]LoanView, error) {
	loans, err := r.loans.List(LoanActive)
	if err != nil {
		return nil, err
	}
	return r.views(loans)
}

func (r *Reports) OverdueLoans() ([]LoanView, error) {
	loans, err := r.loans.List(LoanExpired)
	if err != nil {
		return nil, err
	}
	return r.views(loans)
}

// UserHistory lists every loan a user has had, newest first.
func (r *Reports) UserHistory(userID int64) ([]LoanView, error) {
	if _, err := r.users.Get(userID); err != nil {
		return nil, err
	}
	loans, err := r.loans.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(loans, func(i, j int) bool { return loans[i].ID > loans[j].ID })
	return r.views(loans)
}

// ToolHolders lists the outstanding loans of a tool: who has it right now.
func (r *Reports) ToolHolders(toolID int64) ([]LoanView, error) {
	if _, err := r.ledger.Get(toolID); err != nil {
		return nil, err
	}
	loans, err := r.loans.ListByTool(toolID)
	if err != nil {
		return nil, err
	}
	out := loans[:0]
	for _, l := range loans {
		if l.Status.Outstanding() {
			out = append(out, l)
		}
	}
	return r.views(out)
}

// Reconcile checks, per tool, that 0 <= available <= total and that
// total - available equals the units held by its active and expired loans.
func (r *Reports) Reconcile() ([]Discrepancy, error) {
	tools, err := r.ledger.List(true)
	if err != nil {
		return nil, err
	}
	loans, err := r.loans.List("")
	if err != nil {
		return nil, err
	}
	held := map[int64]int{}
	for _, l := range loans {
		if l.Status.Outstanding() {
			held[l.ToolID] += l.Quantity
		}
	}

	out := []Discrepancy{}
	for _, t := range tools {
		d := Discrepancy{ToolID: t.ID, Total: t.TotalQuantity, Available: t.AvailableQuantity, Outstanding: held[t.ID]}
		switch {
		case t.AvailableQuantity < 0:
			d.Reason = "available below zero"
		case t.AvailableQuantity > t.TotalQuantity:
			d.Reason = "available above total"
		case t.Lent() != held[t.ID]:
			d.Reason = "lent units do not match outstanding loans"
		default:
			delete(held, t.ID)
			continue
		}
		delete(held, t.ID)
		out = append(out, d)
	}
	for id, q := range held {
		out = append(out, Discrepancy{ToolID: id, Outstanding: q, Reason: "loans reference an unknown tool"})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ToolID < out[j].ToolID })
	return out, nil
}

func (r *Reports) views(loans []Loan) ([]LoanView, error) {
	users, err := r.users.List(true)
	if err != nil {
		return nil, err
	}
	tools, err := r.ledger.List(true)
	if err != nil {
		return nil, err
	}
	userByID := make(map[int64]User, len(users))
	for _, u := range users {
		userByID[u.ID] = u
	}
	toolByID := make(map[int64]Tool, len(tools))
	for _, t := range tools {
		toolByID[t.ID] = t
	}

	now := r.clock.Now()
	out := make([]LoanView, 0, len(loans))
	for _, l := range loans {
		v := LoanView{
			LoanID:          l.ID,
			Status:          l.Status,
			UserID:          l.UserID,
			UserName:        "unknown",
			ToolID:          l.ToolID,
			ToolName:        "unknown",
			Quantity:        l.Quantity,
			StartedAt:       l.StartedAt,
			EstimatedReturn: l.EstimatedReturn,
			ActualReturn:    l.ActualReturn,
			Remarks:         l.Remarks,
		}
		if u, ok := userByID[l.UserID]; ok {
			v.UserName = u.FullName()
			v.Phone = u.Phone
		}
		if t, ok := toolByID[l.ToolID]; ok {
			v.ToolName = t.Name
		}
		if l.Status == LoanExpired {
			v.DaysOverdue = int(-dueIn(l, now) / (24 * time.Hour))
		}
		out = append(out, v)
	}
	return out, nil
}
