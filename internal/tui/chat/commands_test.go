package chat

import (
	"testing"
)

func TestFilterCommands(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"help", "new", "sessions", "switch", "clear", "copy", "quit"}},
		{"/switch", []string{"switch"}},
		{"ls", []string{"sessions"}},
		{"sw", []string{"switch"}},
		{"xyz", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var got []string
			for _, cmd := range FilterCommands(tt.query) {
				got = append(got, cmd.Name)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("FilterCommands(%q) = %v, want %v", tt.query, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("FilterCommands(%q) = %v, want %v", tt.query, got, tt.want)
					break
				}
			}
		})
	}
}

func TestFilterCommandsSingleLetterKeepsAllMatches(t *testing.T) {
	found := map[string]bool{}
	for _, cmd := range FilterCommands("/s") {
		found[cmd.Name] = true
	}
	if !found["sessions"] || !found["switch"] {
		t.Errorf("FilterCommands(/s) should offer sessions and switch, got %v", found)
	}
}

func TestAllCommandsHaveUsage(t *testing.T) {
	seen := map[string]bool{}
	for _, cmd := range AllCommands() {
		if cmd.Usage == "" || cmd.Description == "" {
			t.Errorf("command %q is missing usage or description", cmd.Name)
		}
		for _, name := range append([]string{cmd.Name}, cmd.Aliases...) {
			if seen[name] {
				t.Errorf("name %q is used twice", name)
			}
			seen[name] = true
		}
	}
}

func TestFooterHelp(t *testing.T) {
	want := "enter send · ctrl+j newline · ctrl+y copy reply · /help commands · ctrl+c quit"
	if got := DefaultKeyMap().FooterHelp(); got != want {
		t.Errorf("FooterHelp() = %q, want %q", got, want)
	}
}
