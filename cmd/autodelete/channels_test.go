package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/voidwell/autodelete/internal/store"
)

func TestChannelsCmd_EmptyDatabase(t *testing.T) {
	cfgPath := writeTestConfig(t)

	initCmd := newRootCmd()
	initCmd.SetOut(new(bytes.Buffer))
	initCmd.SetArgs([]string{"db", "init", "--config", cfgPath})
	if err := initCmd.Execute(); err != nil {
		t.Fatalf("db init failed: %v", err)
	}

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"channels", "--config", cfgPath})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("channels failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No channels configured") {
		t.Errorf("expected empty message, got: %s", buf.String())
	}
}

func TestChannelsCmd_ListsEnabledChannels(t *testing.T) {
	cfgPath := writeTestConfig(t)

	initCmd := newRootCmd()
	initCmd.SetOut(new(bytes.Buffer))
	initCmd.SetArgs([]string{"db", "init", "--config", cfgPath})
	if err := initCmd.Execute(); err != nil {
		t.Fatalf("db init failed: %v", err)
	}

	// Seed two channels through the store, one later disabled.
	gormDB := openFromTestConfig(t, cfgPath)
	channels := store.NewChannels(gormDB)
	if _, err := channels.Enable("C1", 10*time.Minute); err != nil {
		t.Fatalf("enable C1: %v", err)
	}
	if _, err := channels.Enable("C2", time.Hour); err != nil {
		t.Fatalf("enable C2: %v", err)
	}
	if _, err := channels.Disable("C2"); err != nil {
		t.Fatalf("disable C2: %v", err)
	}

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"channels", "--config", cfgPath})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("channels failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "C1") || !strings.Contains(out, "10m0s") {
		t.Errorf("expected C1 with 10m lifetime, got: %s", out)
	}
	if strings.Contains(out, "C2") {
		t.Errorf("disabled channel C2 listed without --all: %s", out)
	}
}

func TestChannelsCmd_AllIncludesDisabled(t *testing.T) {
	cfgPath := writeTestConfig(t)

	initCmd := newRootCmd()
	initCmd.SetOut(new(bytes.Buffer))
	initCmd.SetArgs([]string{"db", "init", "--config", cfgPath})
	if err := initCmd.Execute(); err != nil {
		t.Fatalf("db init failed: %v", err)
	}

	gormDB := openFromTestConfig(t, cfgPath)
	channels := store.NewChannels(gormDB)
	if _, err := channels.Enable("C1", time.Hour); err != nil {
		t.Fatalf("enable C1: %v", err)
	}
	if _, err := channels.Disable("C1"); err != nil {
		t.Fatalf("disable C1: %v", err)
	}

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"channels", "--config", cfgPath, "--all"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("channels --all failed: %v", err)
	}
	if !strings.Contains(buf.String(), "C1") {
		t.Errorf("expected disabled C1 with --all, got: %s", buf.String())
	}
}
