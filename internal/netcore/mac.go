package netcore

import (
	"crypto/sha256"
	"fmt"
)

// DeriveMacAddress returns a deterministic locally-administered unicast
// MAC for a container's attachment to a network, hashed from the
// concatenation of both IDs so the same container gets a different
// address on each network it joins. Grounded verbatim on the teacher's
// scon/network.go deriveMacAddress (sha256 of the ID, bit 0x02 set to
// mark locally-administered, bit 0x01 cleared to mark unicast),
// generalized from one ID to container+network so it stays stable
// across container recreation but unique per attachment.
func DeriveMacAddress(containerID, networkID string) string {
	h := sha256.Sum256([]byte(containerID + "/" + networkID))
	h[0] |= 0x02
	h[0] &= 0xfe
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", h[0], h[1], h[2], h[3], h[4], h[5])
}
