package cmd

import (
	"testing"

	"github.com/spf13/cobra"
)

func findCommand(t *testing.T, root *cobra.Command, path ...string) *cobra.Command {
	t.Helper()
	cmd, _, err := root.Find(path)
	if err != nil || cmd == root {
		t.Fatalf("command %v not found: %v", path, err)
	}
	return cmd
}

// TestRootCommand tests the root command configuration
func TestRootCommand(t *testing.T) {
	root := NewRootCmd()

	if root.Use != "reimburse" {
		t.Errorf("root Use = %q, want %q", root.Use, "reimburse")
	}
	if !root.SilenceUsage || !root.SilenceErrors {
		t.Error("root command should silence usage and errors; Execute renders them")
	}

	for _, name := range []string{"config", "api-url", "log-level", "output", "no-color", "metrics-file"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("persistent flag %q not found", name)
		}
	}
}

// TestSubcommands tests that every command group is registered
func TestSubcommands(t *testing.T) {
	root := NewRootCmd()

	paths := [][]string{
		{"auth", "login"},
		{"auth", "logout"},
		{"auth", "register"},
		{"auth", "status"},
		{"auth", "verify-email"},
		{"auth", "forgot-password"},
		{"auth", "reset-password"},
		{"auth", "refresh"},
		{"profile", "show"},
		{"profile", "update"},
		{"profile", "change-password"},
		{"profile", "preferences"},
		{"reimbursements", "list"},
		{"reimbursements", "get"},
		{"reimbursements", "submit"},
		{"reimbursements", "review"},
		{"reimbursements", "analytics"},
		{"reimbursements", "export"},
		{"teams", "list"},
		{"teams", "get"},
		{"teams", "create"},
		{"teams", "update"},
		{"teams", "delete"},
		{"teams", "members"},
		{"teams", "members", "add"},
		{"teams", "members", "set-role"},
		{"teams", "members", "remove"},
		{"teams", "invite"},
		{"teams", "invitations", "accept"},
		{"teams", "invitations", "reject"},
		{"teams", "budget"},
		{"teams", "set-budget"},
		{"teams", "analytics"},
		{"notifications", "list"},
		{"notifications", "read"},
		{"notifications", "read-all"},
		{"notifications", "delete"},
		{"notifications", "preferences"},
		{"users", "list"},
		{"users", "get"},
		{"users", "set-role"},
		{"doctor"},
		{"version"},
	}

	for _, path := range paths {
		cmd := findCommand(t, root, path...)
		if cmd.Short == "" {
			t.Errorf("%v Short description is empty", path)
		}
		if cmd.RunE == nil {
			t.Errorf("%v has no RunE", path)
		}
	}
}

// TestLoginFlags tests that login has correct flags
func TestLoginFlags(t *testing.T) {
	login := findCommand(t, NewRootCmd(), "auth", "login")

	if login.Flags().ShorthandLookup("e") == nil {
		t.Error("flag 'email' should have shorthand 'e'")
	}
	if login.Flags().Lookup("password") == nil {
		t.Error("flag 'password' not found on login command")
	}
	if login.Flags().Lookup("password-stdin") == nil {
		t.Error("flag 'password-stdin' not found on login command")
	}
}

// TestSubmitRequiredFlags tests that submit marks its inputs required
func TestSubmitRequiredFlags(t *testing.T) {
	submit := findCommand(t, NewRootCmd(), "reimbursements", "submit")

	for _, name := range []string{"file", "amount", "category", "description"} {
		flag := submit.Flags().Lookup(name)
		if flag == nil {
			t.Errorf("flag %q not found on submit command", name)
			continue
		}
		if _, ok := flag.Annotations[cobra.BashCompOneRequiredFlag]; !ok {
			t.Errorf("flag %q should be required", name)
		}
	}
}

// TestVersionSkipsApp tests that version runs without configuration
func TestVersionSkipsApp(t *testing.T) {
	version := findCommand(t, NewRootCmd(), "version")

	if version.Annotations[skipApp] != "true" {
		t.Error("version command should be annotated to skip app setup")
	}
	if version.Flags().Lookup("verbose") == nil {
		t.Error("flag 'verbose' not found on version command")
	}
}

// TestRootCommandIsolation tests that each tree has its own flag state
func TestRootCommandIsolation(t *testing.T) {
	a := NewRootCmd()
	b := NewRootCmd()

	if err := a.PersistentFlags().Set("output", "json"); err != nil {
		t.Fatal(err)
	}
	if got, _ := b.PersistentFlags().GetString("output"); got != "text" {
		t.Errorf("output flag leaked between trees: got %q", got)
	}
}
