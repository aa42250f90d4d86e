// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/olegiv/gatekeeper-go/internal/auth"
	"github.com/olegiv/gatekeeper-go/internal/model"
	"github.com/olegiv/gatekeeper-go/internal/store"
	"github.com/olegiv/gatekeeper-go/internal/testutil"
)

func TestAuthenticate(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice", "secret", model.RoleAdmin)
	adminID := testutil.RoleID(t, db, model.RoleAdmin)
	waiterID := testutil.RoleID(t, db, model.RoleWaiter)

	tests := []struct {
		name     string
		username string
		password string
		roleID   int64
		wantErr  error
	}{
		{"valid", "alice", "secret", adminID, nil},
		{"padded username", "  alice ", "secret", adminID, nil},
		{"wrong password", "alice", "nope", adminID, ErrInvalidCredentials},
		{"wrong role", "alice", "secret", waiterID, ErrInvalidCredentials},
		{"unknown user", "bob", "secret", adminID, ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Authenticate(ctx, tt.username, tt.password, tt.roleID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && user.ID != alice.ID {
				t.Errorf("user.ID = %d, want %d", user.ID, alice.ID)
			}
		})
	}

	got, err := svc.Get(ctx, alice.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.LastLoginAt.Valid {
		t.Error("expected last login to be recorded")
	}
}

func TestAuthenticateRehashesOldParams(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()
	q := store.New(db)

	user := testutil.CreateUser(t, db, "old", "pw", model.RoleCashier)
	cheap := auth.Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}
	oldHash, _ := cheap.Hash("pw")
	if err := q.UpdateUserPassword(ctx, store.UpdateUserPasswordParams{PasswordHash: oldHash, ID: user.ID}); err != nil {
		t.Fatalf("UpdateUserPassword: %v", err)
	}

	if _, err := svc.Authenticate(ctx, "old", "pw", user.RoleID); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	got, _ := q.GetUserByID(ctx, user.ID)
	if auth.NeedsRehash(got.PasswordHash) {
		t.Error("password should have been re-hashed")
	}
}

func TestCreateUser(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()
	cashierID := testutil.RoleID(t, db, model.RoleCashier)

	valid := CreateUserInput{
		Username:        "maria",
		FullName:        "María <b>López</b>",
		Password:        "pw1",
		ConfirmPassword: "pw1",
		RoleID:          cashierID,
	}

	user, err := svc.Create(ctx, valid)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.FullName != "María López" {
		t.Errorf("FullName = %q, markup should be stripped", user.FullName)
	}
	if user.RoleName != model.RoleCashier {
		t.Errorf("RoleName = %q", user.RoleName)
	}

	tests := []struct {
		name    string
		mutate  func(*CreateUserInput)
		wantErr error
	}{
		{"duplicate", func(in *CreateUserInput) {}, ErrUsernameTaken},
		{"missing username", func(in *CreateUserInput) { in.Username = "  " }, ErrFieldsRequired},
		{"markup only name", func(in *CreateUserInput) { in.Username = "x"; in.FullName = "<script></script>" }, ErrFieldsRequired},
		{"mismatch", func(in *CreateUserInput) { in.Username = "y"; in.ConfirmPassword = "other" }, ErrPasswordMismatch},
		{"no role", func(in *CreateUserInput) { in.Username = "z"; in.RoleID = 0 }, ErrFieldsRequired},
		{"unknown role", func(in *CreateUserInput) { in.Username = "w"; in.RoleID = 999 }, ErrUnknownRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			if _, err := svc.Create(ctx, in); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUpdateUser(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()
	adminID := testutil.RoleID(t, db, model.RoleAdmin)
	cashierID := testutil.RoleID(t, db, model.RoleCashier)
	waiterID := testutil.RoleID(t, db, model.RoleWaiter)

	admin := testutil.CreateUser(t, db, "root", "pw", model.RoleAdmin)
	waiter := testutil.CreateUser(t, db, "walt", "old", model.RoleWaiter)
	testutil.CreateUser(t, db, "carol", "pw", model.RoleCashier)

	// Keeping the username and leaving the password blank is allowed.
	user, err := svc.Update(ctx, admin.ID, UpdateUserInput{
		ID:       waiter.ID,
		Username: " walt ",
		FullName: "Walter <i>White</i>",
		RoleID:   cashierID,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if user.Username != "walt" || user.FullName != "Walter White" || user.RoleName != model.RoleCashier {
		t.Errorf("user = %q/%q/%q", user.Username, user.FullName, user.RoleName)
	}
	if user.PasswordHash != waiter.PasswordHash {
		t.Error("blank password should keep the current hash")
	}

	user, err = svc.Update(ctx, admin.ID, UpdateUserInput{
		ID:              waiter.ID,
		Username:        "walter",
		FullName:        "Walter White",
		Password:        "new",
		ConfirmPassword: "new",
		RoleID:          waiterID,
	})
	if err != nil {
		t.Fatalf("Update with password: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "walter", "new", waiterID); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "walter", "old", waiterID); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("old password err = %v, want ErrInvalidCredentials", err)
	}

	valid := UpdateUserInput{ID: user.ID, Username: "walter", FullName: "Walter", RoleID: waiterID}
	tests := []struct {
		name    string
		actorID int64
		mutate  func(*UpdateUserInput)
		wantErr error
	}{
		{"username of another user", admin.ID, func(in *UpdateUserInput) { in.Username = "carol" }, ErrUsernameTaken},
		{"missing full name", admin.ID, func(in *UpdateUserInput) { in.FullName = "<b></b>" }, ErrFieldsRequired},
		{"no role", admin.ID, func(in *UpdateUserInput) { in.RoleID = 0 }, ErrFieldsRequired},
		{"unknown role", admin.ID, func(in *UpdateUserInput) { in.RoleID = 999 }, ErrUnknownRole},
		{"password mismatch", admin.ID, func(in *UpdateUserInput) { in.Password = "a"; in.ConfirmPassword = "b" }, ErrPasswordMismatch},
		{"missing user", admin.ID, func(in *UpdateUserInput) { in.ID = 9999 }, ErrUserNotFound},
		{"own role", admin.ID, func(in *UpdateUserInput) { in.ID = admin.ID; in.Username = "root"; in.RoleID = cashierID }, ErrCannotChangeOwnRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			if _, err := svc.Update(ctx, tt.actorID, in); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// Admins may still edit their own name.
	self, err := svc.Update(ctx, admin.ID, UpdateUserInput{ID: admin.ID, Username: "root", FullName: "Root Admin", RoleID: adminID})
	if err != nil {
		t.Fatalf("self update: %v", err)
	}
	if self.FullName != "Root Admin" {
		t.Errorf("FullName = %q", self.FullName)
	}
}

func TestDeleteUser(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()

	admin := testutil.CreateUser(t, db, "admin", "pw", model.RoleAdmin)
	waiter := testutil.CreateUser(t, db, "w", "pw", model.RoleWaiter)

	if err := svc.Delete(ctx, admin.ID, admin.ID); !errors.Is(err, ErrCannotDeleteSelf) {
		t.Errorf("self delete err = %v", err)
	}
	if err := svc.Delete(ctx, admin.ID, waiter.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, admin.ID, waiter.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("second delete err = %v, want ErrUserNotFound", err)
	}
	if _, err := svc.Get(ctx, waiter.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Get err = %v", err)
	}
}

func TestRoleByName(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()

	for _, name := range model.Roles {
		role, err := svc.RoleByName(ctx, name)
		if err != nil {
			t.Fatalf("RoleByName(%q): %v", name, err)
		}
		if role.Name != name || role.ID == 0 {
			t.Errorf("RoleByName(%q) = %+v", name, role)
		}
	}

	for _, name := range []string{"", "user", "Admin"} {
		if _, err := svc.RoleByName(ctx, name); !errors.Is(err, ErrUnknownRole) {
			t.Errorf("RoleByName(%q) err = %v, want ErrUnknownRole", name, err)
		}
	}
}
