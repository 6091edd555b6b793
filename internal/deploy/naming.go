package deploy

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	containerNameRandomBytes = 2
	containerNameMaxLen      = 255
)

// ContainerName generates a container name with a random suffix.
// Format: searchdock-{stack}-{service}-{4-char-random}
func ContainerName(stack, service string) string {
	suffix := randomContainerSuffix()
	stack, service = truncateNameParts(stack, service, suffix)
	return fmt.Sprintf("searchdock-%s-%s-%s", stack, service, suffix)
}

func randomContainerSuffix() string {
	b := make([]byte, containerNameRandomBytes)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%0*x", containerNameRandomBytes*2, 0)
	}
	return hex.EncodeToString(b)
}

func truncateNameParts(stack, service, suffix string) (string, string) {
	const fixedLen = len("searchdock---")
	maxPartsLen := containerNameMaxLen - fixedLen - len(suffix)
	if maxPartsLen <= 0 {
		return "", ""
	}
	if len(stack)+len(service) <= maxPartsLen {
		return stack, service
	}

	over := len(stack) + len(service) - maxPartsLen
	stackLen := len(stack)
	if over < stackLen {
		return stack[:stackLen-over], service
	}

	stack = ""
	over -= stackLen
	if over < len(service) {
		service = service[:len(service)-over]
		return stack, service
	}

	return stack, ""
}
