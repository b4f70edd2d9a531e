package clipboard

import (
	"errors"
	"slices"
	"testing"
)

func TestCopyCommand(t *testing.T) {
	orig := lookPath
	t.Cleanup(func() { lookPath = orig })

	cases := []struct {
		name      string
		goos      string
		available []string
		want      []string
		wantErr   bool
	}{
		{name: "macos", goos: "darwin", want: []string{"pbcopy"}},
		{name: "windows", goos: "windows", want: []string{"clip"}},
		{name: "wayland preferred", goos: "linux", available: []string{"xclip", "wl-copy"}, want: []string{"wl-copy"}},
		{name: "x11 xclip", goos: "linux", available: []string{"xclip", "xsel"}, want: []string{"xclip", "-selection", "clipboard"}},
		{name: "x11 xsel", goos: "linux", available: []string{"xsel"}, want: []string{"xsel", "--clipboard", "--input"}},
		{name: "nothing installed", goos: "linux", wantErr: true},
		{name: "unsupported", goos: "plan9", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lookPath = func(name string) (string, error) {
				if slices.Contains(tc.available, name) {
					return "/usr/bin/" + name, nil
				}
				return "", errors.New("not found")
			}
			got, err := copyCommand(tc.goos)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("copyCommand(%q) = %v, want error", tc.goos, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("copyCommand(%q): %v", tc.goos, err)
			}
			if !slices.Equal(got, tc.want) {
				t.Errorf("copyCommand(%q) = %v, want %v", tc.goos, got, tc.want)
			}
		})
	}
}
