package service

import (
	"errors"
	"testing"

	"github.com/questlog/internal/db"
)

func TestCharacterCreateSeedsDefaults(t *testing.T) {
	gdb, cleanup := setupTestDB(t, "character_create")
	defer cleanup()

	account, err := NewAccountService(gdb).Register("cliff", "secret")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	svc := NewCharacterService(gdb)
	character, err := svc.Create(account.ID, "Cliff")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if character.Level != 1 {
		t.Fatalf("expected level 1, got %d", character.Level)
	}

	definitions, err := NewAttributeService(gdb).ListByCharacter(character.ID)
	if err != nil {
		t.Fatalf("ListByCharacter returned error: %v", err)
	}
	if len(definitions) != len(db.DefaultAttributeSeeds) {
		t.Fatalf("expected %d seeded definitions, got %d", len(db.DefaultAttributeSeeds), len(definitions))
	}
	for i, definition := range definitions {
		if !definition.IsDefault {
			t.Fatalf("expected seeded definition %s to be default", definition.ID)
		}
		if definition.SortOrder != int64(i) {
			t.Fatalf("expected sort order %d, got %d", i, definition.SortOrder)
		}
	}

	values, err := character.AttributeValues()
	if err != nil {
		t.Fatalf("failed to decode attributes: %v", err)
	}
	if len(values) != len(db.DefaultAttributeSeeds) {
		t.Fatalf("expected %d attribute values, got %d", len(db.DefaultAttributeSeeds), len(values))
	}
	for _, definition := range definitions {
		if values[definition.ID] != 0 {
			t.Fatalf("expected zero initial value for %s, got %d", definition.ID, values[definition.ID])
		}
	}

	if _, err := svc.Create("ghost", "Mira"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := svc.Create(account.ID, "  "); !errors.Is(err, ErrNameEmpty) {
		t.Fatalf("expected ErrNameEmpty, got %v", err)
	}
}

func TestCharacterRename(t *testing.T) {
	gdb, cleanup := setupTestDB(t, "character_rename")
	defer cleanup()

	_, character := setupCharacter(t, gdb, "cliff", "Cliff")

	svc := NewCharacterService(gdb)
	renamed, err := svc.Rename(character.ID, "  克里夫  ")
	if err != nil {
		t.Fatalf("Rename returned error: %v", err)
	}
	if renamed.Name != "克里夫" {
		t.Fatalf("expected trimmed rename, got %q", renamed.Name)
	}

	if _, err := svc.Rename("ghost", "X"); !errors.Is(err, ErrCharacterNotFound) {
		t.Fatalf("expected ErrCharacterNotFound, got %v", err)
	}
}
