package termwatch

import "testing"

func TestPercentDecode(t *testing.T) {
	cases := []struct{ in, want string }{
		{"no-escapes-here", "no-escapes-here"},
		{"a%20b", "a b"},
		{"a%2Fb", "a/b"},
		{"a%", "a%"},
		{"a%GG", "a%GG"},
		{"", ""},
		{"%2f%2F", "//"},
	}
	for _, c := range cases {
		if got := percentDecode(c.in); got != c.want {
			t.Errorf("percentDecode(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
