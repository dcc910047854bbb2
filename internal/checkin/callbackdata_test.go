package checkin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, name := range []string{"Jane Doe", "Bob", "Mary Ann Smith", "José Núñez", "O'Brien", "  Padded Name  "} {
		payload := EncodeContact(name)
		got, err := DecodePayload(payload)
		require.NoError(t, err, payload)
		assert.False(t, got.None)
		assert.Equal(t, NormalizeName(name), got.Name, payload)
	}
	assert.Equal(t, "contact_Jane_Doe", EncodeContact("Jane Doe"))
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		in      string
		want    Payload
		wantErr bool
	}{
		{in: "contact_none", want: Payload{None: true}},
		{in: "contact_Jane_Doe", want: Payload{Name: "Jane Doe"}},
		{in: "contact_None", want: Payload{Name: "None"}},
		{in: "contact_", wantErr: true},
		{in: "contact___", wantErr: false, want: Payload{Name: "  "}},
		{in: "jane", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := DecodePayload(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrMalformedPayload, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestUnderscoreCollision(t *testing.T) {
	// Lossy by construction: both names share one payload.
	assert.Equal(t, EncodeContact("Ann Lee"), EncodeContact("Ann_Lee"))

	p, err := DecodePayload(EncodeContact("Ann_Lee"))
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", p.Name)
	assert.Equal(t, MatchKey("Ann_Lee"), MatchKey(p.Name))
}

func TestMatchKey(t *testing.T) {
	same := [][2]string{
		{"Jane Doe", "jane doe"},
		{"  Jane   Doe ", "Jane Doe"},
		{"Jane_Doe", "Jane Doe"},
		{"STRASSE", "strasse"},
		{"Jos\u00e9", "Jose\u0301"},
	}
	for _, pair := range same {
		assert.Equal(t, MatchKey(pair[0]), MatchKey(pair[1]), "%q vs %q", pair[0], pair[1])
	}
	assert.NotEqual(t, MatchKey("Jane Doe"), MatchKey("Jane Roe"))
}
