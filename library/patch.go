package library

import (
	"sort"
	"strconv"
	"strings"
)

// ToolPatch lists the tool fields an administrator may edit. Nil fields are
// left unchanged. Quantities are not patchable; they move through loans.
type ToolPatch struct {
	Name           *string
	Category       *string
	Status         *ToolStatus
	EstimatedValue *float64
}

func (p ToolPatch) Empty() bool {
	return p.Name == nil && p.Category == nil && p.Status == nil && p.EstimatedValue == nil
}

func (p ToolPatch) validate() error {
	var errs []error
	if p.Name != nil {
		errs = append(errs, requireMinLength(*p.Name, 2, "name"))
	}
	if p.Category != nil {
		errs = append(errs, requireNonBlank(*p.Category, "category"))
	}
	if p.Status != nil {
		errs = append(errs, requireOneOf(string(*p.Status), toolStatuses, "status"))
	}
	if p.EstimatedValue != nil {
		errs = append(errs, requireNonNegative(*p.EstimatedValue, "estimated_value"))
	}
	return firstError(errs...)
}

func (p ToolPatch) apply(t *Tool) {
	if p.Name != nil {
		t.Name = strings.TrimSpace(*p.Name)
	}
	if p.Category != nil {
		t.Category = strings.TrimSpace(*p.Category)
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.EstimatedValue != nil {
		t.EstimatedValue = *p.EstimatedValue
	}
}

// UserPatch lists the user fields that may be edited.
type UserPatch struct {
	Names    *string
	Surnames *string
	Phone    *string
	Address  *string
	Role     *Role
	Password *string
}

func (p UserPatch) Empty() bool {
	return p.Names == nil && p.Surnames == nil && p.Phone == nil &&
		p.Address == nil && p.Role == nil && p.Password == nil
}

func (p UserPatch) validate() error {
	var errs []error
	if p.Names != nil {
		errs = append(errs, requireMinLength(*p.Names, 2, "names"))
	}
	if p.Surnames != nil {
		errs = append(errs, requireMinLength(*p.Surnames, 2, "surnames"))
	}
	if p.Phone != nil {
		errs = append(errs, requirePhone(*p.Phone))
	}
	if p.Address != nil {
		errs = append(errs, requireNonBlank(*p.Address, "address"))
	}
	if p.Role != nil {
		errs = append(errs, requireOneOf(string(*p.Role), roles, "role"))
	}
	if p.Password != nil {
		errs = append(errs, requirePassword(*p.Password))
	}
	return firstError(errs...)
}

// ParseToolPatch converts field=value pairs from an outer surface into a
// ToolPatch. Unknown fields are rejected.
func ParseToolPatch(fields map[string]string) (ToolPatch, error) {
	var p ToolPatch
	for _, key := range sortedKeys(fields) {
		v := fields[key]
		switch key {
		case "name":
			p.Name = &v
		case "category":
			p.Category = &v
		case "status":
			s := ToolStatus(v)
			p.Status = &s
		case "estimated_value":
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return ToolPatch{}, newError(ErrValidation, "estimated_value must be a number, got %q", v)
			}
			p.EstimatedValue = &f
		default:
			return ToolPatch{}, newError(ErrValidation, "unknown tool field %q", key)
		}
	}
	return p, p.validate()
}

// ParseUserPatch is the user counterpart of ParseToolPatch.
func ParseUserPatch(fields map[string]string) (UserPatch, error) {
	var p UserPatch
	for _, key := range sortedKeys(fields) {
		v := fields[key]
		switch key {
		case "names":
			p.Names = &v
		case "surnames":
			p.Surnames = &v
		case "phone":
			p.Phone = &v
		case "address":
			p.Address = &v
		case "role":
			r := Role(v)
			p.Role = &r
		case "password":
			p.Password = &v
		default:
			return UserPatch{}, newError(ErrValidation, "unknown user field %q", key)
		}
	}
	return p, p.validate()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
