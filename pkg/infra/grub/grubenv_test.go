package grub_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/drover/pkg/infra/grub"
	"github.com/m-mizutani/gt"
)

func TestEnvFile_LoadMissing(t *testing.T) {
	env := grub.NewEnvFile(filepath.Join(t.TempDir(), "grubenv"))

	values, err := env.Load()
	gt.NoError(t, err)
	gt.Value(t, len(values)).Equal(0)
}

func TestEnvFile_SaveProducesFixedBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grubenv")
	env := grub.NewEnvFile(path)

	gt.NoError(t, env.Save(map[string]string{
		grub.KeyBootCounter: "3",
		grub.KeyBootSuccess: "0",
	}))

	data, err := os.ReadFile(path)
	gt.NoError(t, err)
	gt.Value(t, len(data)).Equal(1024)

	content := string(data)
	if !strings.HasPrefix(content, "# GRUB Environment Block\n") {
		t.Errorf("missing header: %q", content[:32])
	}
	if !strings.Contains(content, "boot_counter=3\n") {
		t.Error("boot_counter not written")
	}
	if !strings.HasSuffix(content, "#") {
		t.Error("block is not padded with '#'")
	}
}

func TestEnvFile_RoundTrip(t *testing.T) {
	env := grub.NewEnvFile(filepath.Join(t.TempDir(), "grubenv"))

	gt.NoError(t, env.Save(map[string]string{
		"boot_counter":       "2",
		"saved_entry":        "ostree-1",
		"kernelopts":         "root=/dev/sda2 ro",
		"boot_indeterminate": "0",
	}))

	values, err := env.Load()
	gt.NoError(t, err)
	gt.Value(t, len(values)).Equal(4)
	gt.Value(t, values["saved_entry"]).Equal("ostree-1")
	gt.Value(t, values["kernelopts"]).Equal("root=/dev/sda2 ro")
}

func TestEnvFile_SetPreservesUnknownKeys(t *testing.T) {
	env := grub.NewEnvFile(filepath.Join(t.TempDir(), "grubenv"))

	gt.NoError(t, env.Save(map[string]string{"saved_entry": "ostree-0"}))
	gt.NoError(t, env.Set(grub.KeyBootCounter, "3"))

	values, err := env.Load()
	gt.NoError(t, err)
	gt.Value(t, values["saved_entry"]).Equal("ostree-0")
	gt.Value(t, values[grub.KeyBootCounter]).Equal("3")
}

func TestEnvFile_Unset(t *testing.T) {
	env := grub.NewEnvFile(filepath.Join(t.TempDir(), "grubenv"))

	gt.NoError(t, env.Set(grub.KeyBootCounter, "1"))
	gt.NoError(t, env.Unset(grub.KeyBootCounter))

	_, ok, err := env.Get(grub.KeyBootCounter)
	gt.NoError(t, err)
	gt.Value(t, ok).Equal(false)

	// Unsetting an absent key is not an error
	gt.NoError(t, env.Unset(grub.KeyBootCounter))
}

func TestEnvFile_SaveRejectsOversizedContent(t *testing.T) {
	env := grub.NewEnvFile(filepath.Join(t.TempDir(), "grubenv"))

	if err := env.Save(map[string]string{"huge": strings.Repeat("x", 1024)}); err == nil {
		t.Error("Save() should reject content larger than the block")
	}
}

func TestEnvFile_LoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grubenv")
	gt.NoError(t, os.WriteFile(path, []byte("# GRUB Environment Block\nnot a pair\n"), 0644))

	if _, err := grub.NewEnvFile(path).Load(); err == nil {
		t.Error("Load() should fail on a line without '='")
	}
}
