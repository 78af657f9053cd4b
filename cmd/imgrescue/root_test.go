package main

import (
	"testing"
)

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	if cmd.Use != "imgrescue" {
		t.Errorf("Use = %q, want imgrescue", cmd.Use)
	}
	if !cmd.SilenceUsage || !cmd.SilenceErrors {
		t.Error("root command should silence usage and errors")
	}

	for _, name := range []string{"verbose", "log-json"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("persistent flag %q not defined", name)
		}
	}

	want := map[string]bool{"plan": false, "fetch": false, "history": false, "init": false, "version": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestGetBoolFlag(t *testing.T) {
	t.Parallel()

	t.Run("persistent flag read from a subcommand", func(t *testing.T) {
		t.Parallel()

		root := NewRootCmd()
		if err := root.PersistentFlags().Set("verbose", "true"); err != nil {
			t.Fatal(err)
		}
		sub, _, err := root.Find([]string{"history"})
		if err != nil {
			t.Fatal(err)
		}
		if !getBoolFlag(sub, "verbose") {
			t.Error("getBoolFlag(verbose) = false, want true")
		}
	})

	t.Run("unknown flag is false", func(t *testing.T) {
		t.Parallel()

		if getBoolFlag(NewRootCmd(), "no-such-flag") {
			t.Error("getBoolFlag(no-such-flag) = true, want false")
		}
	})
}
