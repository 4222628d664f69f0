package netcore

import (
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var macPattern = regexp.MustCompile(`^[0-9a-f]{2}(:[0-9a-f]{2}){5}$`)

func TestDeriveMacAddressIsDeterministicAndLocallyAdministered(t *testing.T) {
	mac1 := DeriveMacAddress("container-a", "net-1")
	mac2 := DeriveMacAddress("container-a", "net-1")
	mac3 := DeriveMacAddress("container-a", "net-2")

	assert.Equal(t, mac1, mac2)
	assert.NotEqual(t, mac1, mac3)
	require.Regexp(t, macPattern, mac1)

	firstByte, err := strconv.ParseUint(mac1[:2], 16, 8)
	require.NoError(t, err)
	assert.NotZero(t, firstByte&0x02, "locally-administered bit must be set")
	assert.Zero(t, firstByte&0x01, "multicast bit must be cleared")
}
