package library

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"community-toolshare/logging"
	"community-toolshare/storage"
)

// Ledger owns the tools collection and is the only writer of
// AvailableQuantity. Every mutation is load, mutate, save under mu.
type Ledger struct {
	gw  storage.Gateway
	log *zap.Logger
	mu  sync.Mutex
}

func NewLedger(gw storage.Gateway, log *zap.Logger) *Ledger {
	return &Ledger{gw: gw, log: logging.OrNop(log).Named("ledger")}
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func (l *Ledger) load(op string) ([]Tool, error) {
	tools, err := storage.Load[Tool](l.gw, storage.Tools)
	if err != nil {
		l.log.Error("storage failure", zap.String("op", op), zap.Error(err))
		return nil, err
	}
	return tools, nil
}

func (l *Ledger) save(op string, tools []Tool) error {
	if err := storage.Save(l.gw, storage.Tools, tools); err != nil {
		l.log.Error("storage failure", zap.String("op", op), zap.Error(err))
		return err
	}
	return nil
}

// warn logs a rejected business rule and hands the error back.
func (l *Ledger) warn(op string, err error, fields ...zap.Field) error {
	l.log.Warn(err.Error(), append(fields, zap.String("op", op))...)
	return err
}

func (l *Ledger) Get(id int64) (*Tool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tools, err := l.load("get_tool")
	if err != nil {
		return nil, err
	}
	for _, t := range tools {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, l.warn("get_tool", newError(ErrToolNotFound, "tool %d does not exist", id), zap.Int64("tool_id", id))
}

// List returns tools in id order; soft-deleted ones only when includeInactive.
func (l *Ledger) List(includeInactive bool) ([]Tool, error) {
	return l.filter("list_tools", func(t Tool) bool { return includeInactive || t.IsActive })
}

// SearchByName matches a case-insensitive substring of the name.
func (l *Ledger) SearchByName(q string) ([]Tool, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	return l.filter("search_tools", func(t Tool) bool {
		return strings.Contains(strings.ToLower(t.Name), q)
	})
}

// SearchByCategory matches the category case-insensitively.
func (l *Ledger) SearchByCategory(category string) ([]Tool, error) {
	category = strings.TrimSpace(category)
	return l.filter("search_tools", func(t Tool) bool {
		return strings.EqualFold(t.Category, category)
	})
}

func (l *Ledger) filter(op string, keep func(Tool) bool) ([]Tool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tools, err := l.load(op)
	if err != nil {
		return nil, err
	}
	out := []Tool{}
	for _, t := range tools {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// IsAvailable is true iff the tool exists, is not soft-deleted, has status
// active and at least amount units free. Storage failures read as false.
func (l *Ledger) IsAvailable(id int64, amount int) bool {
	return l.checkAvailable(id, amount) == nil
}

// checkAvailable is IsAvailable with the reason attached.
func (l *Ledger) checkAvailable(id int64, amount int) error {
	t, err := l.Get(id)
	if err != nil {
		return err
	}
	if err := reservable(t, amount); err != nil {
		return l.warn("check_available", err, zap.Int64("tool_id", id), zap.Int("amount", amount))
	}
	return nil
}

func reservable(t *Tool, amount int) error {
	if !t.IsActive {
		return newError(ErrInsufficientStock, "tool %d has been retired", t.ID)
	}
	if t.Status != ToolActive {
		return newError(ErrInsufficientStock, "tool %d is %s", t.ID, t.Status)
	}
	if t.AvailableQuantity < amount {
		return newError(ErrInsufficientStock, "available %d, requested %d", t.AvailableQuantity, amount)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

// Create registers a tool with all units available. An empty status means active.
func (l *Ledger) Create(name, category string, quantity int, status ToolStatus, value float64) (*Tool, error) {
	if status == "" {
		status = ToolActive
	}
	if err := firstError(
		requireMinLength(name, 2, "name"),
		requireNonBlank(category, "category"),
		requirePositive(quantity, "quantity"),
		requireOneOf(string(status), toolStatuses, "status"),
		requireNonNegative(value, "estimated_value"),
	); err != nil {
		return nil, l.warn("create_tool", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tools, err := l.load("create_tool")
	if err != nil {
		return nil, err
	}
	t := Tool{
		ID:                storage.NextID(tools),
		Name:              strings.TrimSpace(name),
		Category:          strings.TrimSpace(category),
		TotalQuantity:     quantity,
		AvailableQuantity: quantity,
		Status:            status,
		EstimatedValue:    value,
		IsActive:          true,
	}
	tools = append(tools, t)
	if err := l.save("create_tool", tools); err != nil {
		return nil, err
	}
	l.log.Info("tool created", zap.Int64("tool_id", t.ID), zap.String("name", t.Name), zap.Int("quantity", quantity))
	return &t, nil
}

// mutate applies fn to tool id and persists the whole collection. fn must
// leave the tool untouched when it returns an error.
func (l *Ledger) mutate(op string, id int64, fn func(*Tool) error) (*Tool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tools, err := l.load(op)
	if err != nil {
		return nil, err
	}
	for i := range tools {
		if tools[i].ID != id {
			continue
		}
		if err := fn(&tools[i]); err != nil {
			return nil, l.warn(op, err, zap.Int64("tool_id", id))
		}
		if err := l.save(op, tools); err != nil {
			return nil, err
		}
		t := tools[i]
		return &t, nil
	}
	return nil, l.warn(op, newError(ErrToolNotFound, "tool %d does not exist", id), zap.Int64("tool_id", id))
}

// Reserve takes amount units out of the available pool. No partial
// reservations: either all units are taken or nothing changes.
func (l *Ledger) Reserve(id int64, amount int) (*Tool, error) {
	if err := requirePositive(amount, "amount"); err != nil {
		return nil, l.warn("reserve", err)
	}
	t, err := l.mutate("reserve", id, func(t *Tool) error {
		if err := reservable(t, amount); err != nil {
			return err
		}
		t.AvailableQuantity -= amount
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.Info("units reserved", zap.Int64("tool_id", id), zap.Int("amount", amount), zap.Int("available", t.AvailableQuantity))
	return t, nil
}

// Release returns amount units to the pool. Exceeding TotalQuantity means
// the units were already released, which is reported instead of clamped.
func (l *Ledger) Release(id int64, amount int) (*Tool, error) {
	if err := requirePositive(amount, "amount"); err != nil {
		return nil, l.warn("release", err)
	}
	t, err := l.mutate("release", id, func(t *Tool) error {
		if out := t.TotalQuantity - t.AvailableQuantity; amount > out {
			return newError(ErrCapacityExceeded, "releasing %d but only %d of %d total are out",
				amount, out, t.TotalQuantity)
		}
		t.AvailableQuantity += amount
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.Info("units released", zap.Int64("tool_id", id), zap.Int("amount", amount), zap.Int("available", t.AvailableQuantity))
	return t, nil
}

// reclaim undoes a Release whose loan record could not be saved. It skips the
// status checks of Reserve since the units are already owed to that loan.
func (l *Ledger) reclaim(id int64, amount int) error {
	_, err := l.mutate("reclaim", id, func(t *Tool) error {
		if t.AvailableQuantity < amount {
			return newError(ErrInsufficientStock, "available %d, reclaiming %d", t.AvailableQuantity, amount)
		}
		t.AvailableQuantity -= amount
		return nil
	})
	return err
}

// RecordRequest bumps the request counter after a loan is created.
func (l *Ledger) RecordRequest(id int64) error {
	_, err := l.mutate("record_request", id, func(t *Tool) error {
		t.RequestCount++
		return nil
	})
	return err
}

// forgetRequest reverts RecordRequest for a rolled-back loan.
func (l *Ledger) forgetRequest(id int64) error {
	_, err := l.mutate("forget_request", id, func(t *Tool) error {
		if t.RequestCount > 0 {
			t.RequestCount--
		}
		return nil
	})
	return err
}

func (l *Ledger) Update(id int64, patch ToolPatch) (*Tool, error) {
	if patch.Empty() {
		return nil, l.warn("update_tool", newError(ErrValidation, "nothing to update"), zap.Int64("tool_id", id))
	}
	if err := patch.validate(); err != nil {
		return nil, l.warn("update_tool", err, zap.Int64("tool_id", id))
	}
	t, err := l.mutate("update_tool", id, func(t *Tool) error {
		patch.apply(t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.Info("tool updated", zap.Int64("tool_id", id))
	return t, nil
}

// Delete clears IsActive. Outstanding loans and their reserved units stay.
func (l *Ledger) Delete(id int64) error {
	_, err := l.mutate("delete_tool", id, func(t *Tool) error {
		t.IsActive = false
		return nil
	})
	if err != nil {
		return err
	}
	l.log.Info("tool retired", zap.Int64("tool_id", id))
	return nil
}
