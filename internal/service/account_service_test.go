package service

import (
	"errors"
	"testing"
)

func TestAccountRegisterAndLogin(t *testing.T) {
	gdb, cleanup := setupTestDB(t, "account_register")
	defer cleanup()

	svc := NewAccountService(gdb)

	account, err := svc.Register("  cliff  ", " secret ")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if account.Username != "cliff" {
		t.Fatalf("expected trimmed username, got %q", account.Username)
	}
	// 凭据按明文修剪存储，这是当前契约的一部分
	if account.Password != "secret" {
		t.Fatalf("expected trimmed plaintext password, got %q", account.Password)
	}

	logged, err := svc.Login("cliff", "secret ")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if logged.ID != account.ID {
		t.Fatalf("expected account %s, got %s", account.ID, logged.ID)
	}

	if _, err := svc.Login("cliff", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login("nobody", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestAccountRegisterValidation(t *testing.T) {
	gdb, cleanup := setupTestDB(t, "account_validation")
	defer cleanup()

	svc := NewAccountService(gdb)

	if _, err := svc.Register("   ", "secret"); !errors.Is(err, ErrCredentialsEmpty) {
		t.Fatalf("expected ErrCredentialsEmpty, got %v", err)
	}
	if _, err := svc.Register("cliff", "   "); !errors.Is(err, ErrCredentialsEmpty) {
		t.Fatalf("expected ErrCredentialsEmpty, got %v", err)
	}

	if _, err := svc.Register("cliff", "secret"); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if _, err := svc.Register("cliff", "other"); !errors.Is(err, ErrUsernameExists) {
		t.Fatalf("expected ErrUsernameExists, got %v", err)
	}
}

func TestAccountListOrdering(t *testing.T) {
	gdb, cleanup := setupTestDB(t, "account_list")
	defer cleanup()

	svc := NewAccountService(gdb)
	for _, name := range []string{"mira", "cliff", "一郎"} {
		if _, err := svc.Register(name, "secret"); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
	}

	accounts, err := svc.List()
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(accounts) != 3 {
		t.Fatalf("expected 3 accounts, got %d", len(accounts))
	}
	if accounts[0].Username != "cliff" || accounts[1].Username != "mira" {
		t.Fatalf("expected username ordering, got %s, %s", accounts[0].Username, accounts[1].Username)
	}
}
