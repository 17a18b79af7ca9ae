package format

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSize(t *testing.T) {
	cases := []struct {
		in   uint64
		want string
	}{
		{0, "       0"},
		{1023, "    1023"},
		{1024, "   1.0kB"},
		{1536, "   1.5kB"},
		{5 << 20, "   5.0MB"},
		{3 << 30, "   3.0GB"},
		{1 << 40, "   1.0TB"},
		{1 << 62, "   4.0EB"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Size(tc.in), "Size(%d)", tc.in)
	}
}

func TestBar(t *testing.T) {
	cases := []struct {
		child, parent uint64
		want          string
	}{
		{0, 100, " [        ] "},
		{100, 100, " [████████] "},
		{50, 100, " [████    ] "},
		{1, 8, " [█       ] "},
		{1, 16, " [▌       ] "},
		{3, 64, " [▍       ] "},
		{10, 0, " [        ] "},
		{200, 100, " [████████] "},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Bar(tc.child, tc.parent), "Bar(%d, %d)", tc.child, tc.parent)
	}
}

func TestBarHasFixedWidth(t *testing.T) {
	for child := uint64(0); child <= 1000; child += 7 {
		assert.Equal(t, 12, utf8.RuneCountInString(Bar(child, 1000)))
	}
}
