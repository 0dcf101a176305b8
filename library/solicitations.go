package library

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"community-toolshare/logging"
	"community-toolshare/storage"
)

// SolicitationDesk owns the solicitations collection. A solicitation moves
// pending -> approved or pending -> rejected exactly once; approval spawns a
// loan through LoanBook.
type SolicitationDesk struct {
	gw    storage.Gateway
	log   *zap.Logger
	clock Clock
	loans *LoanBook
	mu    sync.Mutex
}

func NewSolicitationDesk(gw storage.Gateway, loans *LoanBook, clock Clock, log *zap.Logger) *SolicitationDesk {
	if clock == nil {
		clock = realClock{}
	}
	return &SolicitationDesk{
		gw:    gw,
		log:   logging.OrNop(log).Named("solicitations"),
		clock: clock,
		loans: loans,
	}
}

var solicitationStatuses = []string{
	string(SolicitationPending), string(SolicitationApproved), string(SolicitationRejected),
}

func (d *SolicitationDesk) load(op string) ([]Solicitation, error) {
	sols, err := storage.Load[Solicitation](d.gw, storage.Solicitations)
	if err != nil {
		d.log.Error("storage failure", zap.String("op", op), zap.Error(err))
		return nil, err
	}
	return sols, nil
}

func (d *SolicitationDesk) save(op string, sols []Solicitation) error {
	if err := storage.Save(d.gw, storage.Solicitations, sols); err != nil {
		d.log.Error("storage failure", zap.String("op", op), zap.Error(err))
		return err
	}
	return nil
}

func (d *SolicitationDesk) warn(op string, err error, fields ...zap.Field) error {
	d.log.Warn(err.Error(), append(fields, zap.String("op", op))...)
	return err
}

// Create files a pending request. Stock is not checked here since it may
// change before an administrator decides.
func (d *SolicitationDesk) Create(userID, toolID int64, quantity, days int, justification string) (*Solicitation, error) {
	const op = "create_solicitation"
	fields := []zap.Field{zap.Int64("user_id", userID), zap.Int64("tool_id", toolID)}
	if err := firstError(
		requirePositive(quantity, "quantity"),
		requirePositive(days, "days"),
	); err != nil {
		return nil, d.warn(op, err, fields...)
	}
	if _, err := d.loans.users.Active(userID); err != nil {
		return nil, err
	}
	if _, err := d.loans.ledger.Get(toolID); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	sols, err := d.load(op)
	if err != nil {
		return nil, err
	}
	s := Solicitation{
		ID:            storage.NextID(sols),
		UserID:        userID,
		ToolID:        toolID,
		Quantity:      quantity,
		Days:          days,
		Justification: strings.TrimSpace(justification),
		RequestedAt:   d.clock.Now(),
		Status:        SolicitationPending,
	}
	sols = append(sols, s)
	if err := d.save(op, sols); err != nil {
		return nil, err
	}
	d.log.Info("solicitation created", append(fields, zap.Int64("solicitation_id", s.ID))...)
	return &s, nil
}

func (d *SolicitationDesk) Get(id int64) (*Solicitation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sols, err := d.load("get_solicitation")
	if err != nil {
		return nil, err
	}
	if i := indexOf(sols, id); i >= 0 {
		s := sols[i]
		return &s, nil
	}
	return nil, d.warn("get_solicitation", newError(ErrSolicitationNotFound, "solicitation %d does not exist", id),
		zap.Int64("solicitation_id", id))
}

// List returns solicitations with the given status, or all for an empty status.
func (d *SolicitationDesk) List(status SolicitationStatus) ([]Solicitation, error) {
	if status != "" {
		if err := requireOneOf(string(status), solicitationStatuses, "status"); err != nil {
			return nil, d.warn("list_solicitations", err)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	sols, err := d.load("list_solicitations")
	if err != nil {
		return nil, err
	}
	out := []Solicitation{}
	for _, s := range sols {
		if status == "" || s.Status == status {
			out = append(out, s)
		}
	}
	return out, nil
}

// pending locates a solicitation that can still be decided. Call with mu held.
func (d *SolicitationDesk) pending(op string, sols []Solicitation, id, adminID int64) (int, error) {
	if adminID < 1 {
		return -1, d.warn(op, newError(ErrValidation, "admin id is required"), zap.Int64("solicitation_id", id))
	}
	i := indexOf(sols, id)
	if i < 0 {
		return -1, d.warn(op, newError(ErrSolicitationNotFound, "solicitation %d does not exist", id),
			zap.Int64("solicitation_id", id))
	}
	if sols[i].Status != SolicitationPending {
		return -1, d.warn(op, newError(ErrAlreadyProcessed, "solicitation %d is already %s", id, sols[i].Status),
			zap.Int64("solicitation_id", id))
	}
	return i, nil
}

// Approve turns a pending solicitation into a loan using its stored
// parameters. If the loan cannot be created the solicitation stays pending.
func (d *SolicitationDesk) Approve(id, adminID int64, remarks string) (*Loan, error) {
	const op = "approve_solicitation"
	d.mu.Lock()
	defer d.mu.Unlock()

	sols, err := d.load(op)
	if err != nil {
		return nil, err
	}
	i, err := d.pending(op, sols, id, adminID)
	if err != nil {
		return nil, err
	}
	s := sols[i]

	remarks = strings.TrimSpace(remarks)
	approver := adminID
	loan, err := d.loans.create(op, loanRequest{
		userID:     s.UserID,
		toolID:     s.ToolID,
		quantity:   s.Quantity,
		days:       s.Days,
		remarks:    strings.TrimSpace(fmt.Sprintf("Approved by admin ID %d. %s", adminID, remarks)),
		approvedBy: &approver,
	})
	if err != nil {
		d.log.Warn("solicitation left pending", zap.Int64("solicitation_id", id), zap.Error(err))
		return nil, err
	}

	now := d.clock.Now()
	s.Status = SolicitationApproved
	s.AdminID = &approver
	s.DecidedAt = &now
	s.AdminRemarks = remarks
	sols[i] = s
	if err := d.save(op, sols); err != nil {
		if derr := d.loans.discard(loan.ID); derr != nil {
			d.log.Error("could not roll back loan", zap.Int64("loan_id", loan.ID), zap.Error(derr))
		}
		return nil, err
	}

	d.log.Info("solicitation approved", zap.Int64("solicitation_id", id), zap.Int64("admin_id", adminID),
		zap.Int64("loan_id", loan.ID))
	return loan, nil
}

// Reject closes a pending solicitation without touching stock.
func (d *SolicitationDesk) Reject(id, adminID int64, reason string) (*Solicitation, error) {
	const op = "reject_solicitation"
	d.mu.Lock()
	defer d.mu.Unlock()

	sols, err := d.load(op)
	if err != nil {
		return nil, err
	}
	i, err := d.pending(op, sols, id, adminID)
	if err != nil {
		return nil, err
	}

	now := d.clock.Now()
	admin := adminID
	s := sols[i]
	s.Status = SolicitationRejected
	s.AdminID = &admin
	s.DecidedAt = &now
	s.AdminRemarks = strings.TrimSpace(reason)
	sols[i] = s
	if err := d.save(op, sols); err != nil {
		return nil, err
	}

	d.log.Info("solicitation rejected", zap.Int64("solicitation_id", id), zap.Int64("admin_id", adminID))
	return &s, nil
}
