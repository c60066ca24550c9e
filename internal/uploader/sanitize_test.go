package uploader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		name     string
		title    string
		original string
		want     string
	}{
		{"plain title", "boiler room", "photo_01.jpg", "boiler room.jpg"},
		{"falls back to original base", "", "photo_01.jpg", "photo_01.jpg"},
		{"path separators replaced", `../../etc/passwd`, "f.png", "_.._etc_passwd.png"},
		{"windows unsafe replaced", `a:b*c?d"e<f>g|h`, "f.pdf", "a_b_c_d_e_f_g_h.pdf"},
		{"control chars dropped", "ok\x00\x1fname", "f.jpg", "okname.jpg"},
		{"dots trimmed", "...", "f.jpg", "file.jpg"},
		{"cyrillic preserved", "Насосная станция", "f.jpg", "Насосная станция.jpg"},
		{"no extension", "note", "README", "note"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, SanitizeFilename(tc.title, tc.original))
		})
	}
}

func TestSanitizeFilenameCapsLength(t *testing.T) {
	long := strings.Repeat("x", 400)
	got := SanitizeFilename(long, "f.jpeg")
	require.Len(t, got, maxBaseNameLen+len(".jpeg"))
	require.True(t, strings.HasSuffix(got, ".jpeg"), "extension survives the cap")
}
