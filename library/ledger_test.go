package library

import (
	"errors"
	"math"
	"testing"
)

func TestCreateToolStartsFullyAvailable(t *testing.T) {
	h := newManager(t)
	a := h.tool(t, "Shovel", 5)
	b := h.tool(t, "Hammer", 1)
	if a.AvailableQuantity != 5 || a.TotalQuantity != 5 || !a.IsActive || a.Status != ToolActive {
		t.Fatalf("unexpected tool %+v", a)
	}
	if a.ID != 1 || b.ID != 2 {
		t.Fatalf("want ids 1,2, got %d,%d", a.ID, b.ID)
	}
}

func TestCreateToolValidation(t *testing.T) {
	h := newManager(t)
	cases := []struct {
		name     string
		toolName string
		category string
		quantity int
		status   ToolStatus
		value    float64
	}{
		{"zero quantity", "Saw", "wood", 0, ToolActive, 1},
		{"negative quantity", "Saw", "wood", -2, ToolActive, 1},
		{"bad status", "Saw", "wood", 1, "broken", 1},
		{"short name", "S", "wood", 1, ToolActive, 1},
		{"blank category", "Saw", "  ", 1, ToolActive, 1},
		{"negative value", "Saw", "wood", 1, ToolActive, -5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tl, err := h.Tools.Create(tc.toolName, tc.category, tc.quantity, tc.status, tc.value)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("want ErrValidation, got %v", err)
			}
			if tl != nil {
				t.Fatalf("failed create returned %+v", tl)
			}
		})
	}
	tools, err := h.Tools.List(true)
	if err != nil || len(tools) != 0 {
		t.Fatalf("rejected tools were persisted: %v %+v", err, tools)
	}
}

func TestReserveAndRelease(t *testing.T) {
	h := newManager(t)
	tl := h.tool(t, "Shovel", 5)

	got, err := h.Tools.Reserve(tl.ID, 2)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got.AvailableQuantity != 3 {
		t.Fatalf("want 3 available, got %d", got.AvailableQuantity)
	}
	if _, err := h.Tools.Reserve(tl.ID, 4); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("want ErrInsufficientStock, got %v", err)
	}
	if h.available(t, tl.ID) != 3 {
		t.Fatalf("failed reserve changed stock")
	}
	if _, err := h.Tools.Release(tl.ID, 3); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("want ErrCapacityExceeded, got %v", err)
	}
	if _, err := h.Tools.Release(tl.ID, math.MaxInt); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("huge release: want ErrCapacityExceeded, got %v", err)
	}
	if h.available(t, tl.ID) != 3 {
		t.Fatalf("refused release changed stock: %d", h.available(t, tl.ID))
	}
	if _, err := h.Tools.Release(tl.ID, 2); err != nil {
		t.Fatalf("release: %v", err)
	}
	if h.available(t, tl.ID) != 5 {
		t.Fatalf("want 5 available after release")
	}
	if _, err := h.Tools.Release(tl.ID, 1); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("double release accepted: %v", err)
	}
	if _, err := h.Tools.Reserve(tl.ID, 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("want ErrValidation for zero amount, got %v", err)
	}
	if _, err := h.Tools.Reserve(99, 1); !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("want ErrToolNotFound, got %v", err)
	}
}

func TestIsAvailable(t *testing.T) {
	h := newManager(t)
	ok := h.tool(t, "Drill", 3)
	repair := h.tool(t, "Sander", 3)
	retired := h.tool(t, "Router", 3)
	status := ToolInRepair
	if _, err := h.Tools.Update(repair.ID, ToolPatch{Status: &status}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := h.Tools.Delete(retired.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	cases := []struct {
		name   string
		id     int64
		amount int
		want   bool
	}{
		{"enough units", ok.ID, 3, true},
		{"too many units", ok.ID, 4, false},
		{"in repair", repair.ID, 1, false},
		{"retired", retired.ID, 1, false},
		{"unknown tool", 42, 1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := h.Tools.IsAvailable(tc.id, tc.amount); got != tc.want {
				t.Fatalf("IsAvailable(%d, %d) = %v, want %v", tc.id, tc.amount, got, tc.want)
			}
		})
	}
	if _, err := h.Tools.Reserve(repair.ID, 1); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("reserved a tool in repair: %v", err)
	}
}

func TestDeleteToolKeepsOutstandingLoans(t *testing.T) {
	h := newManager(t)
	tl := h.tool(t, "Chainsaw", 2)
	u := h.resident(t, "Gus")
	l, err := h.CreateLoan(h.admin, u.ID, tl.ID, 2, 3, "")
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}
	if err := h.RetireTool(h.admin, tl.ID); err != nil {
		t.Fatalf("retire: %v", err)
	}
	got, err := h.Tools.Get(tl.ID)
	if err != nil {
		t.Fatalf("retired tool must still resolve: %v", err)
	}
	if got.IsActive || got.AvailableQuantity != 0 {
		t.Fatalf("unexpected retired tool %+v", got)
	}
	active, _ := h.Tools.List(false)
	if len(active) != 0 {
		t.Fatalf("retired tool listed as active")
	}
	if _, err := h.ReturnLoan(h.admin, l.ID, ""); err != nil {
		t.Fatalf("return on retired tool: %v", err)
	}
	if h.available(t, tl.ID) != 2 {
		t.Fatalf("units not released after return")
	}
}

func TestSearchTools(t *testing.T) {
	h := newManager(t)
	h.tool(t, "Garden Hose", 1)
	if _, err := h.Tools.Create("Hose Reel", "Plumbing", 1, ToolActive, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	h.tool(t, "Pruner", 1)

	byName, err := h.Tools.SearchByName("HOSE")
	if err != nil || len(byName) != 2 {
		t.Fatalf("search by name: %v %+v", err, byName)
	}
	byCat, err := h.Tools.SearchByCategory("plumbing")
	if err != nil || len(byCat) != 1 || byCat[0].Name != "Hose Reel" {
		t.Fatalf("search by category: %v %+v", err, byCat)
	}
}

func TestUpdateTool(t *testing.T) {
	h := newManager(t)
	tl := h.tool(t, "Mower", 1)

	if _, err := h.UpdateTool(h.admin, tl.ID, ToolPatch{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty patch accepted: %v", err)
	}
	patch, err := ParseToolPatch(map[string]string{"name": "Lawn Mower", "estimated_value": "210.5"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, err := h.UpdateTool(h.admin, tl.ID, patch)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != "Lawn Mower" || got.EstimatedValue != 210.5 || got.Category != "garden" {
		t.Fatalf("unexpected tool after patch %+v", got)
	}
	if _, err := h.UpdateTool(h.admin, 77, patch); !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("want ErrToolNotFound, got %v", err)
	}
}

func TestFailedToolSaveIsNotBusinessError(t *testing.T) {
	h := newManager(t)
	h.gw.failSaves("tools")
	_, err := h.Tools.Create("Drill", "power", 1, ToolActive, 10)
	if err == nil {
		t.Fatalf("expected storage failure")
	}
	if !errors.Is(err, errDiskFull) || IsBusinessError(err) {
		t.Fatalf("want storage error, got %v", err)
	}
}
