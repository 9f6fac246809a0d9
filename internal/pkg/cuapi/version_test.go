package cuapi

import "testing"

func TestParseVersion(t *testing.T) {
	cases := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{"1.4.9", Version{1, 4, 9, 0}, false},
		{"1.4.9.7", Version{1, 4, 9, 7}, false},
		{"2", Version{2, 0, 0, 0}, false},
		{" 1.4.9 ", Version{1, 4, 9, 0}, false},
		{"1.4.9.7.3", Version{}, true},
		{"1.x.9", Version{}, true},
		{"", Version{}, true},
	}

	for _, c := range cases {
		got, err := ParseVersion(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseVersion(%q) accepted a bad version", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseVersion(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseVersion(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestVersionAtLeast(t *testing.T) {
	base := Version{1, 4, 9, 0}

	cases := []struct {
		v    Version
		want bool
	}{
		{Version{1, 4, 9, 0}, true},
		{Version{1, 4, 9, 1}, true},
		{Version{1, 5, 0, 0}, true},
		{Version{2, 0, 0, 0}, true},
		{Version{1, 4, 8, 9}, false},
		{Version{1, 3, 9, 0}, false},
		{Version{0, 9, 9, 9}, false},
	}

	for _, c := range cases {
		if got := c.v.AtLeast(base); got != c.want {
			t.Errorf("%v.AtLeast(%v) = %v, want %v", c.v, base, got, c.want)
		}
	}
}

func TestSupportsWsRPC(t *testing.T) {
	cases := []struct {
		firmware string
		want     bool
	}{
		{"1.4.9", true},
		{"1.4.9.1", true},
		{"1.5.0", true},
		{"1.4.8", false},
		{"not-a-version", false},
	}

	for _, c := range cases {
		if got := SupportsWsRPC(c.firmware); got != c.want {
			t.Errorf("SupportsWsRPC(%q) = %v, want %v", c.firmware, got, c.want)
		}
	}
}
