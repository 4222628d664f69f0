package netcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickIPInSubnetSkipsNetworkGatewayAndUsed(t *testing.T) {
	used := map[string]bool{
		"172.30.5.2": true,
	}
	ip, err := pickIPInSubnet("172.30.5.0/24", used)
	require.NoError(t, err)
	assert.Equal(t, "172.30.5.3", ip)
}

func TestPickIPInSubnetExhausted(t *testing.T) {
	used := make(map[string]bool)
	// /30 has exactly one usable host address after network+gateway+broadcast
	_, err := pickIPInSubnet("172.30.5.0/30", used)
	require.NoError(t, err)

	used["172.30.5.2"] = true
	_, err = pickIPInSubnet("172.30.5.0/30", used)
	assert.Error(t, err)
}
