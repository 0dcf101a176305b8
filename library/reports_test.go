package library

import (
	"testing"
	"time"
)

func TestSummary(t *testing.T) {
	h := newManager(t)
	a := h.tool(t, "Drill", 4)
	b := h.tool(t, "Saw", 2)
	retired := h.tool(t, "Old Plane", 1)
	_ = h.Tools.Delete(retired.ID)
	u := h.resident(t, "Hector")
	_, _ = h.Solicitations.Create(u.ID, b.ID, 1, 1, "")
	_, _ = h.Loans.CreateLoan(u.ID, a.ID, 3, 1, "")
	_, _ = h.Loans.CreateLoan(u.ID, b.ID, 1, 10, "")
	h.clock.Advance(48 * time.Hour)

	s, err := h.Reports.Summary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	want := Summary{
		Tools: 3, ActiveTools: 2, Users: 2, ActiveUsers: 2,
		OutstandingLoans: 2, ExpiredLoans: 1, PendingSolicitations: 1,
		TotalUnits: 6, LentUnits: 4, EstimatedValue: 150,
	}
	if s != want {
		t.Fatalf("summary\n got %+v\nwant %+v", s, want)
	}
}

func TestLowStockAndMostRequested(t *testing.T) {
	h := newManager(t)
	a := h.tool(t, "Drill", 3)
	b := h.tool(t, "Saw", 3)
	c := h.tool(t, "Level", 3)
	u := h.resident(t, "Irene")
	for _, id := range []int64{b.ID, b.ID, c.ID, b.ID} {
		if _, err := h.Loans.CreateLoan(u.ID, id, 1, 1, ""); err != nil {
			t.Fatalf("loan: %v", err)
		}
	}

	low, err := h.LowStock()
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if len(low) != 1 || low[0].ID != b.ID {
		t.Fatalf("want only tool %d at threshold 1, got %+v", b.ID, low)
	}

	top, err := h.Reports.MostRequested(2)
	if err != nil {
		t.Fatalf("most requested: %v", err)
	}
	if len(top) != 2 || top[0].ID != b.ID || top[1].ID != c.ID {
		t.Fatalf("want %d,%d first, got %+v", b.ID, c.ID, top)
	}
	all, _ := h.Reports.MostRequested(0)
	if len(all) != 3 || all[2].ID != a.ID {
		t.Fatalf("unlimited ranking: %+v", all)
	}
}

func TestOverdueLoansResolveNames(t *testing.T) {
	h := newManager(t)
	tl := h.tool(t, "Cement Mixer", 2)
	u := h.resident(t, "Julia")
	late, _ := h.Loans.CreateLoan(u.ID, tl.ID, 1, 1, "")
	onTime, _ := h.Loans.CreateLoan(u.ID, tl.ID, 1, 30, "")
	h.clock.Advance(3*24*time.Hour + time.Hour)

	overdue, err := h.Reports.OverdueLoans()
	if err != nil {
		t.Fatalf("overdue: %v", err)
	}
	if len(overdue) != 1 {
		t.Fatalf("want 1 overdue loan, got %d", len(overdue))
	}
	v := overdue[0]
	if v.LoanID != late.ID || v.UserName != "Julia Vecino" || v.Phone != u.Phone || v.ToolName != "Cement Mixer" {
		t.Fatalf("unexpected view %+v", v)
	}
	if v.DaysOverdue != 2 {
		t.Fatalf("want 2 days overdue, got %d", v.DaysOverdue)
	}

	active, _ := h.Reports.ActiveLoans()
	if len(active) != 1 || active[0].LoanID != onTime.ID || active[0].DaysOverdue != 0 {
		t.Fatalf("unexpected active loans %+v", active)
	}
}

func TestToolHoldersAndHistory(t *testing.T) {
	h := newManager(t)
	tl := h.tool(t, "Tile Cutter", 3)
	u := h.resident(t, "Karla")
	v := h.resident(t, "Leo")
	first, _ := h.Loans.CreateLoan(u.ID, tl.ID, 1, 2, "")
	_, _ = h.Loans.CreateLoan(v.ID, tl.ID, 2, 2, "")
	_, _ = h.Loans.ReturnLoan(first.ID, "")

	holders, err := h.Reports.ToolHolders(tl.ID)
	if err != nil {
		t.Fatalf("holders: %v", err)
	}
	if len(holders) != 1 || holders[0].UserID != v.ID || holders[0].Quantity != 2 {
		t.Fatalf("unexpected holders %+v", holders)
	}

	hist, err := h.Reports.UserHistory(u.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 || hist[0].Status != LoanReturned || hist[0].ActualReturn == nil {
		t.Fatalf("unexpected history %+v", hist)
	}
	if _, err := h.Reports.UserHistory(404); err == nil {
		t.Fatalf("history for unknown user should fail")
	}
}

func TestReconcileFindsDrift(t *testing.T) {
	h := newManager(t)
	a := h.tool(t, "Drill", 3)
	b := h.tool(t, "Saw", 3)
	u := h.resident(t, "Mateo")
	_, _ = h.Loans.CreateLoan(u.ID, a.ID, 2, 1, "")
	h.reconciled(t)

	h.forceTool(t, a.ID, func(x *Tool) { x.AvailableQuantity = 2 })
	h.forceTool(t, b.ID, func(x *Tool) { x.AvailableQuantity = 5 })

	ds, err := h.Reports.Reconcile()
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(ds) != 2 {
		t.Fatalf("want 2 discrepancies, got %+v", ds)
	}
	if ds[0].ToolID != a.ID || ds[0].Outstanding != 2 || ds[0].Available != 2 {
		t.Fatalf("unexpected drift for tool %d: %+v", a.ID, ds[0])
	}
	if ds[1].ToolID != b.ID || ds[1].Reason != "available above total" {
		t.Fatalf("unexpected drift for tool %d: %+v", b.ID, ds[1])
	}
}

func TestMostActiveUsers(t *testing.T) {
	h := newManager(t)
	tl := h.tool(t, "Ladder", 10)
	ana := h.resident(t, "Ana")
	beto := h.resident(t, "Beto")
	gone := h.resident(t, "Ciro")
	_ = h.resident(t, "Dora")

	first, _ := h.Loans.CreateLoan(ana.ID, tl.ID, 1, 1, "")
	if _, err := h.Loans.ReturnLoan(first.ID, ""); err != nil {
		t.Fatalf("return: %v", err)
	}
	_, _ = h.Loans.CreateLoan(ana.ID, tl.ID, 1, 1, "")
	_, _ = h.Loans.CreateLoan(beto.ID, tl.ID, 1, 1, "")
	for i := 0; i < 3; i++ {
		_, _ = h.Loans.CreateLoan(gone.ID, tl.ID, 1, 1, "")
	}
	if err := h.Users.Delete(gone.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	got, err := h.Reports.MostActiveUsers(5)
	if err != nil {
		t.Fatalf("most active: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 ranked users, got %+v", got)
	}
	if got[0].UserID != ana.ID || got[0].Loans != 2 || got[0].Name != "Ana Vecino" || got[0].Phone != "(555) 123-4567" {
		t.Fatalf("unexpected leader %+v", got[0])
	}
	if got[1].UserID != beto.ID || got[1].Loans != 1 {
		t.Fatalf("unexpected runner-up %+v", got[1])
	}
	if top, _ := h.Reports.MostActiveUsers(1); len(top) != 1 || top[0].UserID != ana.ID {
		t.Fatalf("limit not applied: %+v", top)
	}
}
