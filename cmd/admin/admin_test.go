package main

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordCmd(t *testing.T) {
	cmd := hashPasswordCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"p"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hash := strings.TrimSpace(out.String())
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("p")); err != nil {
		t.Errorf("printed hash does not match: %v", err)
	}
}

func TestMigrateCmd_RejectsUnknownDirection(t *testing.T) {
	cmd := migrateCmd(slog.New(slog.NewTextHandler(io.Discard, nil)))
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"sideways"})

	if err := cmd.Execute(); err == nil {
		t.Error("expected an error for an unknown direction")
	}
}
