package library

import "time"

type ToolStatus string

const (
	ToolActive       ToolStatus = "active"
	ToolInRepair     ToolStatus = "in_repair"
	ToolOutOfService ToolStatus = "out_of_service"
)

var toolStatuses = []string{string(ToolActive), string(ToolInRepair), string(ToolOutOfService)}

type Role string

const (
	RoleResident      Role = "resident"
	RoleAdministrator Role = "administrator"
)

var roles = []string{string(RoleResident), string(RoleAdministrator)}

type SolicitationStatus string

const (
	SolicitationPending  SolicitationStatus = "pending"
	SolicitationApproved SolicitationStatus = "approved"
	SolicitationRejected SolicitationStatus = "rejected"
)

type LoanStatus string

const (
	LoanActive   LoanStatus = "active"
	LoanReturned LoanStatus = "returned"
	LoanExpired  LoanStatus = "expired"
)

// Outstanding reports whether the loan still holds reserved units.
func (s LoanStatus) Outstanding() bool {
	return s == LoanActive || s == LoanExpired
}

// Tool is one inventory line. AvailableQuantity is only changed through
// Ledger.Reserve and Ledger.Release.
type Tool struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	Category          string     `json:"category"`
	TotalQuantity     int        `json:"total_quantity"`
	AvailableQuantity int        `json:"available_quantity"`
	Status            ToolStatus `json:"status"`
	EstimatedValue    float64    `json:"estimated_value"`
	RequestCount      int        `json:"request_count"`
	IsActive          bool       `json:"is_active"`
}

func (t Tool) GetID() int64 { return t.ID }

// Lent is the number of units currently out on loan.
func (t Tool) Lent() int { return t.TotalQuantity - t.AvailableQuantity }

// User is a registered resident or administrator.
type User struct {
	ID         int64  `json:"id"`
	Names      string `json:"names"`
	Surnames   string `json:"surnames"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	Role       Role   `json:"role"`
	Credential string `json:"credential"`
	IsActive   bool   `json:"is_active"`
}

func (u User) GetID() int64 { return u.ID }

func (u User) FullName() string { return u.Names + " " + u.Surnames }

func (u User) IsAdmin() bool { return u.Role == RoleAdministrator }

// Solicitation is a borrow request waiting for an administrator decision.
type Solicitation struct {
	ID            int64              `json:"id"`
	UserID        int64              `json:"user_id"`
	ToolID        int64              `json:"tool_id"`
	Quantity      int                `json:"quantity"`
	Days          int                `json:"days"`
	Justification string             `json:"justification"`
	RequestedAt   time.Time          `json:"requested_at"`
	Status        SolicitationStatus `json:"status"`
	AdminID       *int64             `json:"admin_id"`
	DecidedAt     *time.Time         `json:"decided_at"`
	AdminRemarks  string             `json:"admin_remarks"`
}

func (s Solicitation) GetID() int64 { return s.ID }

// Loan holds Quantity units of a tool from creation until it is returned.
type Loan struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	ToolID          int64      `json:"tool_id"`
	Quantity        int        `json:"quantity"`
	StartedAt       time.Time  `json:"started_at"`
	EstimatedReturn time.Time  `json:"estimated_return"`
	ActualReturn    *time.Time `json:"actual_return"`
	Status          LoanStatus `json:"status"`
	Remarks         string     `json:"remarks"`
	ApprovedBy      *int64     `json:"approved_by"`
}

func (l Loan) GetID() int64 { return l.ID }

// Overdue reports whether an active loan is past its estimated return at now.
func (l Loan) Overdue(now time.Time) bool {
	return l.Status == LoanActive && now.After(l.EstimatedReturn)
}
