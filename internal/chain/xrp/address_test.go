package xrp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		valid   bool
	}{
		{"genesis account", "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", true},
		{"destination", "rDFrG4CgPFMnQFJBmZH7oqTjLuiB3HS4eu", true},
		{"batch 1", "r38UsJxHSJKajC8qcNmofxJvCESnzmx7Ke", true},
		{"batch 2", "rMGhv5SNsk81QN1fGu6RybDkUi2of36dua", true},
		{"batch 3", "r4ip6t3NUe4UWguLUJCbyojxG6PdPZg9EJ", true},
		{"batch 4", "rwtFtAMNXPoq4xgxn3FzKKGgVZErdcuLST", true},
		{"bad checksum", "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTH", false},
		{"not an address", "NOTANADDRESS", false},
		{"song title", "funkyColdMedina", false},
		{"empty", "", false},
		{"bitcoin alphabet zero", "0Hb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", false},
		{"secret is not an address", "snoPBrXtMeMyMHUVTgbuqAfg1SUTb", false},
		{"eth address", "0x742d35Cc6634C0532925a3b844Bc454e4438f44e", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.valid, IsValidAddress(tt.address))
		})
	}
}

func TestValidateAddressErrors(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, ValidateAddress("rHb9CJAWyB4rj91VRWn96Dkuk0G4bwdty"), ErrInvalidCharacter)
	require.ErrorIs(t, ValidateAddress("rr"), ErrInvalidLength)
	require.Error(t, ValidateAddress("rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTH"))
}

func TestValidateSecret(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateSecret("snoPBrXtMeMyMHUVTgbuqAfg1SUTb"))
	require.NoError(t, ValidateSecret("sEdSJHdnVumf99WfaHTnU8DaQkx5Q4n"))
	assert.Error(t, ValidateSecret(""))
	assert.Error(t, ValidateSecret("masterpassphrase"))
	assert.Error(t, ValidateSecret("snoPBrXtMeMyMHUVTgbuqAfg1SUTc"))
	assert.Error(t, ValidateSecret("rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"))
}

func TestEncodeAddress(t *testing.T) {
	t.Parallel()

	zero, err := EncodeAddress(make([]byte, 20))
	require.NoError(t, err)
	assert.Equal(t, "rrrrrrrrrrrrrrrrrrrrrhoLvTp", zero)

	one := make([]byte, 20)
	one[19] = 1
	got, err := EncodeAddress(one)
	require.NoError(t, err)
	assert.Equal(t, "rrrrrrrrrrrrrrrrrrrrBZbvji", got)

	_, err = EncodeAddress(make([]byte, 19))
	require.ErrorIs(t, err, ErrInvalidLength)
}

func TestDecodeAddressRoundTrip(t *testing.T) {
	t.Parallel()

	for _, addr := range []string{"rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", "rDFrG4CgPFMnQFJBmZH7oqTjLuiB3HS4eu"} {
		id, err := DecodeAddress(addr)
		require.NoError(t, err)
		require.Len(t, id, 20)

		back, err := EncodeAddress(id)
		require.NoError(t, err)
		assert.Equal(t, addr, back)
	}

	_, err := DecodeAddress("rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTj")
	require.Error(t, err)
}
