package library

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"community-toolshare/logging"
	"community-toolshare/storage"
)

// LoanBook owns the loans collection and drives loan transitions:
//
//	active -> returned   (ReturnLoan, releases units)
//	active -> expired    (observed by any listing once EstimatedReturn passes)
//	expired -> returned  (ReturnLoan, releases units)
//
// Units stay reserved for as long as a loan is active or expired.
type LoanBook struct {
	gw     storage.Gateway
	log    *zap.Logger
	clock  Clock
	ledger *Ledger
	users  *Directory
	mu     sync.Mutex
}

func NewLoanBook(gw storage.Gateway, ledger *Ledger, users *Directory, clock Clock, log *zap.Logger) *LoanBook {
	if clock == nil {
		clock = realClock{}
	}
	return &LoanBook{
		gw:     gw,
		log:    logging.OrNop(log).Named("loans"),
		clock:  clock,
		ledger: ledger,
		users:  users,
	}
}

var loanStatuses = []string{string(LoanActive), string(LoanReturned), string(LoanExpired)}

func (b *LoanBook) load(op string) ([]Loan, error) {
	loans, err := storage.Load[Loan](b.gw, storage.Loans)
	if err != nil {
		b.log.Error("storage failure", zap.String("op", op), zap.Error(err))
		return nil, err
	}
	return loans, nil
}

func (b *LoanBook) save(op string, loans []Loan) error {
	if err := storage.Save(b.gw, storage.Loans, loans); err != nil {
		b.log.Error("storage failure", zap.String("op", op), zap.Error(err))
		return err
	}
	return nil
}

func (b *LoanBook) warn(op string, err error, fields ...zap.Field) error {
	b.log.Warn(err.Error(), append(fields, zap.String("op", op))...)
	return err
}

// ---------------------------------------------------------------------------
// Creation
// ---------------------------------------------------------------------------

type loanRequest struct {
	userID     int64
	toolID     int64
	quantity   int
	days       int
	remarks    string
	approvedBy *int64
}

// CreateLoan lends quantity units of a tool to an active user for days days.
func (b *LoanBook) CreateLoan(userID, toolID int64, quantity, days int, remarks string) (*Loan, error) {
	return b.create("create_loan", loanRequest{
		userID:   userID,
		toolID:   toolID,
		quantity: quantity,
		days:     days,
		remarks:  remarks,
	})
}

// create is all-or-nothing: the loan is persisted only after its units are
// reserved, and a failed save gives the units back.
func (b *LoanBook) create(op string, req loanRequest) (*Loan, error) {
	fields := []zap.Field{zap.Int64("user_id", req.userID), zap.Int64("tool_id", req.toolID)}
	if err := firstError(
		requirePositive(req.quantity, "quantity"),
		requirePositive(req.days, "days"),
	); err != nil {
		return nil, b.warn(op, err, fields...)
	}
	if _, err := b.users.Active(req.userID); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ledger.checkAvailable(req.toolID, req.quantity); err != nil {
		return nil, err
	}

	loans, err := b.load(op)
	if err != nil {
		return nil, err
	}
	now := b.clock.Now()
	loan := Loan{
		ID:              storage.NextID(loans),
		UserID:          req.userID,
		ToolID:          req.toolID,
		Quantity:        req.quantity,
		StartedAt:       now,
		EstimatedReturn: now.AddDate(0, 0, req.days),
		Status:          LoanActive,
		Remarks:         strings.TrimSpace(req.remarks),
		ApprovedBy:      req.approvedBy,
	}

	if _, err := b.ledger.Reserve(req.toolID, req.quantity); err != nil {
		return nil, err
	}
	loans = append(loans, loan)
	if err := b.save(op, loans); err != nil {
		if _, rerr := b.ledger.Release(req.toolID, req.quantity); rerr != nil {
			b.log.Error("could not undo reservation", append(fields, zap.Int("quantity", req.quantity), zap.Error(rerr))...)
		}
		return nil, err
	}
	if err := b.ledger.RecordRequest(req.toolID); err != nil {
		b.log.Warn("request count not updated", append(fields, zap.Error(err))...)
	}

	b.log.Info("loan created", append(fields, zap.Int64("loan_id", loan.ID), zap.Int("quantity", loan.Quantity),
		zap.Time("estimated_return", loan.EstimatedReturn))...)
	return &loan, nil
}

// discard removes a loan created moments ago by the same logical operation
// and gives its units back. Only used to roll back Approve.
func (b *LoanBook) discard(loanID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	loans, err := b.load("discard_loan")
	if err != nil {
		return err
	}
	for i, l := range loans {
		if l.ID != loanID {
			continue
		}
		kept := append(loans[:i:i], loans[i+1:]...)
		if err := b.save("discard_loan", kept); err != nil {
			return err
		}
		if l.Status.Outstanding() {
			if _, err := b.ledger.Release(l.ToolID, l.Quantity); err != nil {
				return err
			}
		}
		return b.ledger.forgetRequest(l.ToolID)
	}
	return newError(ErrLoanNotFound, "loan %d does not exist", loanID)
}

// ---------------------------------------------------------------------------
// Return
// ---------------------------------------------------------------------------

// ReturnLoan closes an active or expired loan and releases its units. If the
// release is refused the loan stays outstanding and the error is returned.
func (b *LoanBook) ReturnLoan(id int64, remarks string) (*Loan, error) {
	const op = "return_loan"
	b.mu.Lock()
	defer b.mu.Unlock()

	loans, err := b.load(op)
	if err != nil {
		return nil, err
	}
	i := indexOf(loans, id)
	if i < 0 {
		return nil, b.warn(op, newError(ErrLoanNotFound, "loan %d does not exist", id), zap.Int64("loan_id", id))
	}
	loan := loans[i]
	if !loan.Status.Outstanding() {
		return nil, b.warn(op, newError(ErrInvalidState, "loan %d is %s", id, loan.Status), zap.Int64("loan_id", id))
	}

	if _, err := b.ledger.Release(loan.ToolID, loan.Quantity); err != nil {
		return nil, err
	}

	now := b.clock.Now()
	loan.Status = LoanReturned
	loan.ActualReturn = &now
	if r := strings.TrimSpace(remarks); r != "" {
		if loan.Remarks == "" {
			loan.Remarks = "Return: " + r
		} else {
			loan.Remarks += " | Return: " + r
		}
	}
	loans[i] = loan
	if err := b.save(op, loans); err != nil {
		if rerr := b.ledger.reclaim(loan.ToolID, loan.Quantity); rerr != nil {
			b.log.Error("could not undo release", zap.Int64("loan_id", id), zap.Error(rerr))
		}
		return nil, err
	}

	b.log.Info("loan returned", zap.Int64("loan_id", id), zap.Int64("tool_id", loan.ToolID), zap.Int("quantity", loan.Quantity))
	return &loan, nil
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// Get reads one loan as stored. It does not run the expiry sweep.
func (b *LoanBook) Get(id int64) (*Loan, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	loans, err := b.load("get_loan")
	if err != nil {
		return nil, err
	}
	if i := indexOf(loans, id); i >= 0 {
		l := loans[i]
		return &l, nil
	}
	return nil, b.warn("get_loan", newError(ErrLoanNotFound, "loan %d does not exist", id), zap.Int64("loan_id", id))
}

// List sweeps expired loans, persists the flips and then returns the loans
// with the given status, or all loans for an empty status.
func (b *LoanBook) List(status LoanStatus) ([]Loan, error) {
	if status != "" {
		if err := requireOneOf(string(status), loanStatuses, "status"); err != nil {
			return nil, b.warn("list_loans", err)
		}
	}
	return b.listWhere("list_loans", func(l Loan) bool { return status == "" || l.Status == status })
}

// ListByUser returns every loan of a user, after the expiry sweep.
func (b *LoanBook) ListByUser(userID int64) ([]Loan, error) {
	return b.listWhere("list_loans_by_user", func(l Loan) bool { return l.UserID == userID })
}

// ListByTool returns every loan of a tool, after the expiry sweep.
func (b *LoanBook) ListByTool(toolID int64) ([]Loan, error) {
	return b.listWhere("list_loans_by_tool", func(l Loan) bool { return l.ToolID == toolID })
}

// SweepExpired flips overdue active loans to expired and reports how many changed.
func (b *LoanBook) SweepExpired() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, n, err := b.sweep("sweep_expired")
	return n, err
}

func (b *LoanBook) listWhere(op string, keep func(Loan) bool) ([]Loan, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	loans, _, err := b.sweep(op)
	if err != nil {
		return nil, err
	}
	out := []Loan{}
	for _, l := range loans {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out, nil
}

// sweep must be called with mu held. Reserved units are untouched: an
// expired loan still owes its units until it is returned.
func (b *LoanBook) sweep(op string) ([]Loan, int, error) {
	loans, err := b.load(op)
	if err != nil {
		return nil, 0, err
	}
	now := b.clock.Now()
	flipped := 0
	for i := range loans {
		if loans[i].Overdue(now) {
			loans[i].Status = LoanExpired
			flipped++
		}
	}
	if flipped == 0 {
		return loans, 0, nil
	}
	if err := b.save(op, loans); err != nil {
		return nil, 0, err
	}
	b.log.Info("loans marked expired", zap.Int("count", flipped))
	return loans, flipped, nil
}

func indexOf[T storage.Identified](records []T, id int64) int {
	for i, r := range records {
		if r.GetID() == id {
			return i
		}
	}
	return -1
}

// dueIn is a display helper: positive while a loan is on time.
func dueIn(l Loan, now time.Time) time.Duration {
	return l.EstimatedReturn.Sub(now)
}
