package main

import "testing"

func TestCleanName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Cloud spaces", "cloud_spaces"},
		{"External drives", "external_drives"},
		{"Status!!", "status"},
		{"  Trimmed  ", "trimmed"},
		{"Multi---dash  name", "multi_dash_name"},
		{"über Straße", "über_straße"},
		{"123 numbers first", "t_123_numbers_first"},
		{"", "t"},
		{"!!!", "t"},
		{"th1s_is_fine", "th1s_is_fine"},
		{
			"a very long database title that keeps going well past the identifier cap",
			"a_very_long_database_title_that_keeps_going_well_p",
		},
	}
	for _, tt := range tests {
		got := cleanName(tt.in)
		if got != tt.want {
			t.Errorf("cleanName(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if len(got) > maxIdentLen+2 {
			t.Errorf("cleanName(%q) = %q exceeds length cap", tt.in, got)
		}
	}
}

func TestUniquifier(t *testing.T) {
	u := newUniquifier()
	got := []string{
		u.take("status"),
		u.take("status"),
		u.take("status"),
		u.take("name"),
		u.take("status_2"), // collides with an assigned suffix
	}
	want := []string{"status", "status_2", "status_3", "name", "status_2_2"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("take #%d = %q, want %q", i+1, got[i], want[i])
		}
	}
}

func TestPgIdent(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"user", `"user"`},
		{"order", `"order"`},
		{"table", `"table"`},
		{"users", "users"},
		{"notion_id", "notion_id"},
		{"has space", `"has space"`},
		{"Upper", `"Upper"`},
		{"0start", `"0start"`},
	}
	for _, tt := range tests {
		got := pgIdent(tt.in)
		if got != tt.want {
			t.Errorf("pgIdent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPgQuoteLiteral(t *testing.T) {
	if got := pgQuoteLiteral("it's"); got != "'it''s'" {
		t.Errorf("pgQuoteLiteral = %q", got)
	}
}
