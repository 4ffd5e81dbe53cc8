package core

import "testing"

func TestValidateSkillName(t *testing.T) {
	valid := []string{"seo", "api-design", "skill.v2", "a", "0day", "long_name-with.everything"}
	for _, name := range valid {
		if err := ValidateSkillName(name); err != nil {
			t.Errorf("ValidateSkillName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{
		"",
		"UPPER",
		"-leading-dash",
		".leading-dot",
		"has space",
		"semi;colon",
		"path/../traversal",
		"--scope",
		"$(rm -rf)",
		"sixty-five-characters-ooooooooooooooooooooooooooooooooooooooooooo",
	}
	for _, name := range invalid {
		if err := ValidateSkillName(name); err == nil {
			t.Errorf("ValidateSkillName(%q) = nil, want error", name)
		}
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"My Skill!", "my-skill"},
		{"seo", "seo"},
		{"...", "unnamed-skill"},
		{"", "unnamed-skill"},
		{"a/b\\c", "a-b-c"},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
