package tools

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	require.True(t, ValidateEmail("name@example.com"))
	require.True(t, ValidateEmail("  first.last+tag@sub.example.my  "))
	require.False(t, ValidateEmail("not-an-email"))
	require.False(t, ValidateEmail("missing@tld"))
	require.False(t, ValidateEmail(""))
}

func TestNormalizeNRIC(t *testing.T) {
	got, err := NormalizeNRIC("901231011234")
	require.NoError(t, err)
	require.Equal(t, "901231-01-1234", got)

	got, err = NormalizeNRIC("901231-01-1234")
	require.NoError(t, err)
	require.Equal(t, "901231-01-1234", got)

	got, err = NormalizeNRIC(" 901231 01 1234 ")
	require.NoError(t, err)
	require.Equal(t, "901231-01-1234", got)

	_, err = NormalizeNRIC("12345")
	require.Error(t, err)
	_, err = NormalizeNRIC("9012310112345")
	require.Error(t, err)
}
