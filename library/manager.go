package library

import (
	"fmt"

	"go.uber.org/zap"

	"community-toolshare/config"
	"community-toolshare/logging"
	"community-toolshare/storage"
)

// Manager is a thin façade over the ledger, directory, loan book and
// solicitation desk, keeping CLI code simple. Operations that need an actor
// take a Session.
type Manager struct {
	gw  storage.Gateway
	log *zap.Logger

	Tools         *Ledger
	Users         *Directory
	Loans         *LoanBook
	Solicitations *SolicitationDesk
	Reports       *Reports

	clock             Clock
	defaultLoanDays   int
	lowStockThreshold int
}

type Options struct {
	Logger            *zap.Logger
	Clock             Clock
	DefaultLoanDays   int
	LowStockThreshold int
}

// NewManager wires the components over gw. A DefaultLoanDays below 1 or a
// negative LowStockThreshold falls back to config.Default. A zero threshold
// is kept and means only tools with no units left are low.
func NewManager(gw storage.Gateway, opts Options) *Manager {
	def := config.Default()
	if opts.DefaultLoanDays < 1 {
		opts.DefaultLoanDays = def.DefaultLoanDays
	}
	if opts.LowStockThreshold < 0 {
		opts.LowStockThreshold = def.LowStockThreshold
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	log := logging.OrNop(opts.Logger)

	ledger := NewLedger(gw, log)
	users := NewDirectory(gw, log)
	loans := NewLoanBook(gw, ledger, users, opts.Clock, log)
	sols := NewSolicitationDesk(gw, loans, opts.Clock, log)
	return &Manager{
		gw:                gw,
		log:               log.Named("manager"),
		Tools:             ledger,
		Users:             users,
		Loans:             loans,
		Solicitations:     sols,
		Reports:           NewReports(ledger, users, loans, sols, opts.Clock),
		clock:             opts.Clock,
		defaultLoanDays:   opts.DefaultLoanDays,
		lowStockThreshold: opts.LowStockThreshold,
	}
}

// OpenGateway picks the storage backend named by cfg.
func OpenGateway(cfg config.Config) (storage.Gateway, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return storage.NewSQLiteGateway(cfg.SQLitePath)
	case config.BackendJSON, "":
		return storage.NewFileGateway(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// Open builds a Manager over the backend configured in cfg.
func Open(cfg config.Config, log *zap.Logger) (*Manager, error) {
	gw, err := OpenGateway(cfg)
	if err != nil {
		return nil, err
	}
	return NewManager(gw, Options{
		Logger:            log,
		DefaultLoanDays:   cfg.DefaultLoanDays,
		LowStockThreshold: cfg.LowStockThreshold,
	}), nil
}

// Close closes the underlying gateway.
func (m *Manager) Close() error { return m.gw.Close() }

func (m *Manager) DefaultLoanDays() int { return m.defaultLoanDays }

// ------------------ Sessions ------------------

func (m *Manager) Login(userID int64, password string) (Session, error) {
	u, err := m.Users.Authenticate(userID, password)
	if err != nil {
		return Session{}, err
	}
	s := newSession(u, m.clock.Now())
	m.log.Info("session started", zap.String("session_id", s.ID), zap.Int64("user_id", u.ID))
	return s, nil
}

func (m *Manager) requireSession(s Session, op string) error {
	if !s.Valid() {
		err := newError(ErrUnauthorized, "%s requires a logged-in user", op)
		m.log.Warn(err.Error(), zap.String("op", op))
		return err
	}
	return nil
}

func (m *Manager) requireAdmin(s Session, op string) error {
	if err := m.requireSession(s, op); err != nil {
		return err
	}
	if !s.IsAdmin() {
		err := newError(ErrUnauthorized, "%s requires an administrator", op)
		m.log.Warn(err.Error(), zap.String("op", op), zap.String("session_id", s.ID), zap.Int64("user_id", s.UserID))
		return err
	}
	return nil
}

func (m *Manager) audit(s Session, op string, fields ...zap.Field) {
	m.log.Info(op, append(fields, zap.String("session_id", s.ID), zap.Int64("actor_id", s.UserID))...)
}

// Bootstrap creates the first administrator. It only succeeds while the
// users collection is empty. Two processes sharing one data directory can
// still race here; the store assumes a single writer process.
func (m *Manager) Bootstrap(in UserInput) (*User, error) {
	in.Role = RoleAdministrator
	return m.Users.CreateFirst(in)
}

// ------------------ Tools ------------------

func (m *Manager) AddTool(s Session, name, category string, quantity int, status ToolStatus, value float64) (*Tool, error) {
	if err := m.requireAdmin(s, "add_tool"); err != nil {
		return nil, err
	}
	t, err := m.Tools.Create(name, category, quantity, status, value)
	if err == nil {
		m.audit(s, "add_tool", zap.Int64("tool_id", t.ID))
	}
	return t, err
}

func (m *Manager) UpdateTool(s Session, id int64, patch ToolPatch) (*Tool, error) {
	if err := m.requireAdmin(s, "update_tool"); err != nil {
		return nil, err
	}
	t, err := m.Tools.Update(id, patch)
	if err == nil {
		m.audit(s, "update_tool", zap.Int64("tool_id", id))
	}
	return t, err
}

func (m *Manager) RetireTool(s Session, id int64) error {
	if err := m.requireAdmin(s, "retire_tool"); err != nil {
		return err
	}
	err := m.Tools.Delete(id)
	if err == nil {
		m.audit(s, "retire_tool", zap.Int64("tool_id", id))
	}
	return err
}

// ------------------ Users ------------------

func (m *Manager) AddUser(s Session, in UserInput) (*User, error) {
	if err := m.requireAdmin(s, "add_user"); err != nil {
		return nil, err
	}
	u, err := m.Users.Create(in)
	if err == nil {
		m.audit(s, "add_user", zap.Int64("user_id", u.ID))
	}
	return u, err
}

func (m *Manager) UpdateUser(s Session, id int64, patch UserPatch) (*User, error) {
	if err := m.requireAdmin(s, "update_user"); err != nil {
		return nil, err
	}
	u, err := m.Users.Update(id, patch)
	if err == nil {
		m.audit(s, "update_user", zap.Int64("user_id", id))
	}
	return u, err
}

func (m *Manager) DeactivateUser(s Session, id int64) error {
	if err := m.requireAdmin(s, "deactivate_user"); err != nil {
		return err
	}
	err := m.Users.Delete(id)
	if err == nil {
		m.audit(s, "deactivate_user", zap.Int64("user_id", id))
	}
	return err
}

// ------------------ Circulation ------------------

// CreateLoan lends units directly, without a solicitation. days < 1 uses the
// configured default.
func (m *Manager) CreateLoan(s Session, userID, toolID int64, quantity, days int, remarks string) (*Loan, error) {
	if err := m.requireAdmin(s, "create_loan"); err != nil {
		return nil, err
	}
	if days < 1 {
		days = m.defaultLoanDays
	}
	l, err := m.Loans.CreateLoan(userID, toolID, quantity, days, remarks)
	if err == nil {
		m.audit(s, "create_loan", zap.Int64("loan_id", l.ID))
	}
	return l, err
}

func (m *Manager) ReturnLoan(s Session, loanID int64, remarks string) (*Loan, error) {
	if err := m.requireAdmin(s, "return_loan"); err != nil {
		return nil, err
	}
	l, err := m.Loans.ReturnLoan(loanID, remarks)
	if err == nil {
		m.audit(s, "return_loan", zap.Int64("loan_id", loanID))
	}
	return l, err
}

// RequestLoan files a solicitation on behalf of the session user.
func (m *Manager) RequestLoan(s Session, toolID int64, quantity, days int, justification string) (*Solicitation, error) {
	if err := m.requireSession(s, "request_loan"); err != nil {
		return nil, err
	}
	if days < 1 {
		days = m.defaultLoanDays
	}
	return m.Solicitations.Create(s.UserID, toolID, quantity, days, justification)
}

func (m *Manager) Approve(s Session, solicitationID int64, remarks string) (*Loan, error) {
	if err := m.requireAdmin(s, "approve_solicitation"); err != nil {
		return nil, err
	}
	l, err := m.Solicitations.Approve(solicitationID, s.UserID, remarks)
	if err == nil {
		m.audit(s, "approve_solicitation", zap.Int64("solicitation_id", solicitationID), zap.Int64("loan_id", l.ID))
	}
	return l, err
}

func (m *Manager) Reject(s Session, solicitationID int64, reason string) (*Solicitation, error) {
	if err := m.requireAdmin(s, "reject_solicitation"); err != nil {
		return nil, err
	}
	sol, err := m.Solicitations.Reject(solicitationID, s.UserID, reason)
	if err == nil {
		m.audit(s, "reject_solicitation", zap.Int64("solicitation_id", solicitationID))
	}
	return sol, err
}

// ListSolicitations returns solicitations by status; an empty status lists all.
func (m *Manager) ListSolicitations(status SolicitationStatus) ([]Solicitation, error) {
	return m.Solicitations.List(status)
}

func (m *Manager) GetSolicitation(id int64) (*Solicitation, error) {
	return m.Solicitations.Get(id)
}

// MyHistory is the session user's own loan history.
func (m *Manager) MyHistory(s Session) ([]LoanView, error) {
	if err := m.requireSession(s, "my_history"); err != nil {
		return nil, err
	}
	return m.Reports.UserHistory(s.UserID)
}

// LowStock uses the configured threshold.
func (m *Manager) LowStock() ([]Tool, error) {
	return m.Reports.LowStock(m.lowStockThreshold)
}
