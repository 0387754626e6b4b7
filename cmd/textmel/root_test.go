package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/example/go-textmel/internal/config"
	"github.com/example/go-textmel/internal/testutil"
)

func TestNewRootCmd_HasExpectedSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"validate", "stats", "encode"}
	for _, name := range want {
		found := false

		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}

		if !found {
			t.Errorf("expected subcommand %q not found in root", name)
		}
	}
}

func TestNewRootCmd_HasPersistentConfigFlag(t *testing.T) {
	root := NewRootCmd()
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("expected --config persistent flag to be registered")
	}
	if root.PersistentFlags().Lookup("data-train-filelist") == nil {
		t.Error("expected --data-train-filelist persistent flag to be registered")
	}
}

func TestSetupLogger_DoesNotPanic(_ *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "not-a-level"} {
		setupLogger(level)
	}
}

func TestRequireConfig_FailsWhenNotInitialized(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.Config{}

	if _, err := requireConfig(); err == nil {
		t.Fatal("expected error when no filelists are configured")
	}
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	wav := testutil.WriteSineWAV(t, dir, "a.wav", 22050, 22050)
	train := testutil.WriteFilelist(t, dir, "train.txt", []string{wav + "|hello"})
	valid := testutil.WriteFilelist(t, dir, "valid.txt", []string{wav + "|world"})

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{
		"validate",
		"--data-train-filelist", train,
		"--data-valid-filelist", valid,
	})

	if err := root.Execute(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestEncodeCommand(t *testing.T) {
	dir := t.TempDir()
	wav := testutil.WriteSineWAV(t, dir, "a.wav", 22050, 22050)

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"encode", wav, "--text", "hello"})

	if err := root.Execute(); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func TestEncodeCommand_MissingFile(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"encode", "/no/such/file.wav"})

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "no/such/file.wav") {
		t.Fatalf("encode error = %v, want a path error", err)
	}
}
