package tui

import (
	"strings"
	"testing"
)

func TestIsInteractive(t *testing.T) {
	// Depends on how tests are run; only ensure it does not panic.
	_ = IsInteractive()
}

func TestShouldPrompt_DisabledInCI(t *testing.T) {
	tests := []struct {
		name   string
		envVar string
		value  string
	}{
		{"GitHub Actions", "GITHUB_ACTIONS", "true"},
		{"GitLab CI", "GITLAB_CI", "true"},
		{"Jenkins", "JENKINS_URL", "http://jenkins.local"},
		{"Generic CI", "CI", "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.value)

			if ShouldPrompt() {
				t.Errorf("ShouldPrompt() = true with %s set", tt.envVar)
			}
		})
	}
}

func TestPromptForSelect(t *testing.T) {
	_, err := PromptForSelect("Choose:", []string{})
	if err == nil {
		t.Error("expected error when no options provided, got nil")
	}
}

func TestPromptForCredentials_NothingMissing(t *testing.T) {
	in := Credentials{Email: "grace@example.com", Password: "pw"}

	got, err := PromptForCredentials(in)
	if err != nil {
		t.Fatalf("PromptForCredentials() error = %v", err)
	}
	if got != in {
		t.Errorf("PromptForCredentials() = %+v, want %+v", got, in)
	}
}

func TestReadSecret(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"newline terminated", "s3cret\n", "s3cret", false},
		{"crlf terminated", "s3cret\r\n", "s3cret", false},
		{"no newline", "s3cret", "s3cret", false},
		{"only first line", "first\nsecond\n", "first", false},
		{"empty", "", "", true},
		{"blank line", "\n", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadSecret(strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadSecret() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ReadSecret() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadSecrets(t *testing.T) {
	got, err := ReadSecrets(strings.NewReader("old-pw\n\nnew-pw"), 2)
	if err != nil {
		t.Fatalf("ReadSecrets() error = %v", err)
	}
	if len(got) != 2 || got[0] != "old-pw" || got[1] != "new-pw" {
		t.Errorf("ReadSecrets() = %q, want [old-pw new-pw]", got)
	}

	if _, err := ReadSecrets(strings.NewReader("only-one\n"), 2); err == nil {
		t.Error("ReadSecrets() with too few lines should fail")
	}
}

func TestRequired(t *testing.T) {
	validate := required("Email")

	if err := validate("  "); err == nil || err.Error() != "email is required" {
		t.Errorf("required() on blank = %v", err)
	}
	if err := validate("grace@example.com"); err != nil {
		t.Errorf("required() on value = %v", err)
	}
}
