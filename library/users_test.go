package library

import (
	"errors"
	"strings"
	"testing"
)

func TestCreateUserHashesCredential(t *testing.T) {
	h := newManager(t)
	u, err := h.Users.Create(UserInput{
		Names: " Bruno ", Surnames: "Diaz", Phone: "555 0101 22", Address: "Av. 3", Password: "s3cret",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Role != RoleResident || !u.IsActive || u.Names != "Bruno" {
		t.Fatalf("unexpected user %+v", u)
	}
	if u.Credential == "s3cret" || !strings.HasPrefix(u.Credential, "$2") {
		t.Fatalf("credential stored in clear: %q", u.Credential)
	}
	if _, err := h.Users.Authenticate(u.ID, "s3cret"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := h.Users.Authenticate(u.ID, "S3CRET"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}

func TestCreateUserValidation(t *testing.T) {
	h := newManager(t)
	valid := UserInput{Names: "Cata", Surnames: "Lopez", Phone: "555-1234", Address: "Calle 1", Password: "pw"}

	cases := []struct {
		name   string
		mutate func(*UserInput)
	}{
		{"short names", func(in *UserInput) { in.Names = "C" }},
		{"short surnames", func(in *UserInput) { in.Surnames = " L " }},
		{"letters in phone", func(in *UserInput) { in.Phone = "555-CALL" }},
		{"too few digits", func(in *UserInput) { in.Phone = "12-34" }},
		{"blank address", func(in *UserInput) { in.Address = "" }},
		{"bad role", func(in *UserInput) { in.Role = "guest" }},
		{"blank password", func(in *UserInput) { in.Password = "  " }},
		{"long password", func(in *UserInput) { in.Password = strings.Repeat("x", 73) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.mutate(&in)
			if _, err := h.Users.Create(in); !errors.Is(err, ErrValidation) {
				t.Fatalf("want ErrValidation, got %v", err)
			}
		})
	}
	users, _ := h.Users.List(true)
	if len(users) != 1 {
		t.Fatalf("only the administrator should exist, got %d users", len(users))
	}
}

func TestUpdateUser(t *testing.T) {
	h := newManager(t)
	u := h.resident(t, "Dario")
	oldCred := u.Credential

	patch, err := ParseUserPatch(map[string]string{"address": "Calle 9", "password": "new-pw"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, err := h.UpdateUser(h.admin, u.ID, patch)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Address != "Calle 9" || got.Credential == oldCred || got.Names != "Dario" {
		t.Fatalf("unexpected user after patch %+v", got)
	}
	if _, err := h.Login(u.ID, "new-pw"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, err := h.Login(u.ID, "pw-Dario"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("old password still works: %v", err)
	}
	if _, err := h.Users.Update(u.ID, UserPatch{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty patch accepted: %v", err)
	}
	if _, err := h.Users.Update(88, patch); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}

func TestDeactivateUserIsSoft(t *testing.T) {
	h := newManager(t)
	u := h.resident(t, "Elena")
	if err := h.DeactivateUser(h.admin, u.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	got, err := h.Users.Get(u.ID)
	if err != nil {
		t.Fatalf("deactivated user must still resolve: %v", err)
	}
	if got.IsActive {
		t.Fatalf("user still active")
	}
	if _, err := h.Users.Active(u.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
	active, _ := h.Users.List(false)
	all, _ := h.Users.List(true)
	if len(active) != 1 || len(all) != 2 {
		t.Fatalf("active %d, all %d", len(active), len(all))
	}
}

func TestSearchUsers(t *testing.T) {
	h := newManager(t)
	h.resident(t, "Fabian")
	h.resident(t, "Fabiola")
	h.resident(t, "Gema")

	got, err := h.Users.SearchByName("fabi")
	if err != nil || len(got) != 2 {
		t.Fatalf("search names: %v %+v", err, got)
	}
	got, _ = h.Users.SearchByName("VECINO")
	if len(got) != 3 {
		t.Fatalf("search surnames: want 3, got %d", len(got))
	}
}
