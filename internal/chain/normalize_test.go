package chain

import "testing"

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  alice   smith ", "ALICE SMITH"},
		{"First National Bank, N.A.", "FIRST NATIONAL BANK"},
		{"ACME HOLDINGS LLC", "ACME HOLDINGS"},
		{"Smith Family Trust", "SMITH FAMILY"},
		{"O'Brien, Robert", "O BRIEN ROBERT"},
	}
	for _, tc := range cases {
		if got := NormalizeName(tc.in); got != tc.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNamesMatch(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"Alice Smith", "ALICE SMITH", true},
		{"Alice Smith", "alice   smith", true},
		{"US BANK", "U S BANK", true},
		{"First National Bank N.A.", "First National Bank", true},
		{"Robert Smith", "Robert Smith Jr and Mary Smith", true},
		{"Alice Smith", "Bob Jones", false},
		{"", "Alice", false},
		{"Co", "Corp", false},
	}
	for _, tc := range cases {
		if got := NamesMatch(tc.a, tc.b); got != tc.want {
			t.Errorf("NamesMatch(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
