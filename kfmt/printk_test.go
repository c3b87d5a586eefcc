package kfmt

import "testing"

func TestPrintfConversions(t *testing.T) {
	cases := []struct {
		format string
		args   []interface{}
		want   string
	}{
		{"%d", []interface{}{42}, "42"},
		{"%5d", []interface{}{42}, "   42"},
		{"%-5d|", []interface{}{42}, "42   |"},
		{"%05d", []interface{}{42}, "00042"},
		{"%x", []interface{}{uint32(255)}, "ff"},
		{"%X", []interface{}{uint32(255)}, "FF"},
		{"%#x", []interface{}{uint32(255)}, "0xff"},
		{"%o", []interface{}{uint32(8)}, "10"},
		{"%c", []interface{}{'A'}, "A"},
		{"%s", []interface{}{"hi"}, "hi"},
		{"%.2s", []interface{}{"hello"}, "he"},
		{"%%", nil, "%"},
		{"%u", []interface{}{uint32(7)}, "7"},
		{"%+d", []interface{}{5}, "+5"},
		{"%ld", []interface{}{int64(9)}, "9"},
		{"%lld", []interface{}{int64(-9)}, "-9"},
		{"%q", []interface{}{1}, "%q"},
	}
	for _, c := range cases {
		got := Sprintf(c.format, c.args...)
		if got != c.want {
			t.Errorf("Sprintf(%q) = %q, want %q", c.format, got, c.want)
		}
	}
}

func TestPrintfMissingArg(t *testing.T) {
	got := Sprintf("%d")
	if got != "%!(MISSING)" {
		t.Errorf("got %q", got)
	}
}
