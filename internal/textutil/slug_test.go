package textutil

import "testing"

func TestMakeSlug(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "My Workspace", "my-workspace"},
		{"apostrophe", "alice's apps", "alices-apps"},
		{"accents", "Café Über", "cafe-uber"},
		{"repeated whitespace", "a   b\tc", "a-b-c"},
		{"surrounding dashes", "  --Team--  ", "team"},
		{"symbols only", "!!!", ""},
		{"empty", "", ""},
		{"underscore kept", "data_team 2", "data_team-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MakeSlug(tt.in); got != tt.want {
				t.Errorf("MakeSlug(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMakeSlugDeterministic(t *testing.T) {
	for _, name := range []string{"Acme Corp", "Ünïcödé", "x"} {
		if MakeSlug(name) != MakeSlug(name) {
			t.Errorf("MakeSlug(%q) not deterministic", name)
		}
	}
}
