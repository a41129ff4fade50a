package main

import (
	"strings"
	"testing"
)

func TestCommandTree(t *testing.T) {
	paths := []string{
		"sync",
		"status",
		"dedupe",
		"daemon",
		"import",
		"txn create",
		"txn list",
		"txn status",
		"txn delete",
		"payment add",
		"note add",
		"attach",
		"log add",
		"contact add",
		"config show",
		"bench",
	}

	for _, p := range paths {
		cmd, _, err := rootCmd.Find(strings.Fields(p))
		if err != nil {
			t.Errorf("Find(%q) error = %v", p, err)
			continue
		}
		if got := cmd.CommandPath(); got != "lsync "+p {
			t.Errorf("Find(%q) resolved to %q", p, got)
		}
	}
}

func TestTopLevelCommandsHaveGroups(t *testing.T) {
	groups := map[string]bool{}
	for _, g := range rootCmd.Groups() {
		groups[g.ID] = true
	}
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			continue
		}
		if !groups[cmd.GroupID] {
			t.Errorf("command %q has unknown group %q", cmd.Name(), cmd.GroupID)
		}
	}
}
