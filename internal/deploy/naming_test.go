package deploy

import (
	"regexp"
	"strings"
	"testing"
)

func TestContainerName_Format(t *testing.T) {
	name := ContainerName("search", "elasticsearch")
	re := regexp.MustCompile(`^searchdock-search-elasticsearch-[0-9a-f]{4}$`)
	if !re.MatchString(name) {
		t.Fatalf("ContainerName() = %q, expected pattern %q", name, re.String())
	}
}

func TestContainerName_UniqueAcrossCalls(t *testing.T) {
	first := ContainerName("search", "elasticsearch")
	unique := false
	for range 8 {
		if next := ContainerName("search", "elasticsearch"); next != first {
			unique = true
			break
		}
	}
	if !unique {
		t.Fatalf("expected random suffix to vary across calls, first=%q", first)
	}
}

func TestContainerName_LengthBounded(t *testing.T) {
	longStack := strings.Repeat("a", 300)
	longService := strings.Repeat("b", 240)

	name := ContainerName(longStack, longService)
	if len(name) > containerNameMaxLen {
		t.Fatalf("ContainerName() length = %d, max %d", len(name), containerNameMaxLen)
	}
}
