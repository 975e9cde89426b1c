package excel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "", want: ""},
		{raw: "46040", want: "2026-01-18"},
		{raw: "46040.5", want: "2026-01-18"},
		{raw: "2026-01-18", want: "2026-01-18"},
		{raw: "2026/01/18", want: "2026-01-18"},
		{raw: "2026-01-18T09:30:00Z", want: "2026-01-18"},
		{raw: "2026-01-18 09:30:00", want: "2026-01-18"},
		{raw: "18/01/2026", want: "2026-01-18"},
		{raw: "01/18/2026", want: "2026-01-18"},
		{raw: "05/05/2026", want: "2026-05-05"},
		{raw: "03/04/2026", wantErr: true},
		{raw: "31/02/2026", wantErr: true},
		{raw: "next monday", wantErr: true},
		{raw: "-4", wantErr: true},
		{raw: "NaN", wantErr: true},
		{raw: "nan", wantErr: true},
		{raw: "Inf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := NormalizeDate(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSerialAndISOAgree(t *testing.T) {
	serial, err := NormalizeDate("46040")
	require.NoError(t, err)
	iso, err := NormalizeDate("2026-01-18")
	require.NoError(t, err)
	assert.Equal(t, iso, serial)
	assert.Equal(t, "20260118", DayIDFromDate(iso))
}

func TestParseReference(t *testing.T) {
	v := NewValidator()

	ref, ok := v.ParseReference("1 John 4:7-8")
	require.True(t, ok)
	assert.Equal(t, Reference{Book: "1 John", Chapter: 4, VerseStart: 7, VerseEnd: 8}, ref)

	ref, ok = v.ParseReference("Psalm 23:1")
	require.True(t, ok)
	assert.Equal(t, 1, ref.VerseEnd)

	_, ok = v.ParseReference("Psalm twenty three")
	assert.False(t, ok)
	_, ok = v.ParseReference("John 3:16-10")
	assert.False(t, ok)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"faith", "hope", "love"}, SplitList(" faith, hope,,love ,"))
	assert.Nil(t, SplitList(""))
}
