package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDirectoryFormat(t *testing.T) {
	testCases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "E.164", in: "+15551234567", want: "(555) 123-4567"},
		{name: "Bare 11 digits", in: "15551234567", want: "(555) 123-4567"},
		{name: "Surrounding spaces", in: " +15551234567 ", want: "(555) 123-4567"},
		{name: "Too short", in: "+1555123", wantErr: true},
		{name: "Non NANP country code", in: "+445551234567", wantErr: true},
		{name: "Already directory format", in: "(555) 123-4567", wantErr: true},
		{name: "Empty", in: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToDirectoryFormat(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestToCarrierFormat(t *testing.T) {
	got, err := ToCarrierFormat("(555) 123-4567")
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", got)

	got, err = ToCarrierFormat("1 (555) 123-4567")
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", got)

	_, err = ToCarrierFormat("555-1234")
	assert.ErrorIs(t, err, ErrInvalidPhone)
}

func TestPhoneFormats_RoundTrip(t *testing.T) {
	for _, carrier := range []string{"+15551234567", "+12125550000", "+19998887777", "+10000000000"} {
		dir, err := ToDirectoryFormat(carrier)
		require.NoError(t, err)
		back, err := ToCarrierFormat(dir)
		require.NoError(t, err)
		assert.Equal(t, carrier, back)

		again, err := ToDirectoryFormat(back)
		require.NoError(t, err)
		assert.Equal(t, dir, again)
	}
}
