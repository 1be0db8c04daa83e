package vecstore

import (
	"testing"

	"github.com/google/uuid"
)

func Test_QdrantStore_PointIDDeterministic(t *testing.T) {
	t.Parallel()

	first := pointID("iso12207-6.4.9-001")
	second := pointID("iso12207-6.4.9-001")
	other := pointID("iso12207-6.4.9-002")

	if first != second {
		t.Errorf("same chunk ID must map to the same point ID: %q vs %q", first, second)
	}
	if first == other {
		t.Error("distinct chunk IDs must not collide")
	}
	if _, err := uuid.Parse(first); err != nil {
		t.Errorf("point ID must be a valid UUID: %v", err)
	}
}

func Test_QdrantStore_PointIDNamespaceIsProjectScoped(t *testing.T) {
	t.Parallel()

	// A chunk ID hashed directly under the well-known DNS namespace must
	// yield a different point ID, so foreign UUIDv5 schemes never collide
	// with ours inside a shared cluster.
	ours := pointID("iso12207-6.4.9-001")
	dns := uuid.NewSHA1(uuid.NameSpaceDNS, []byte("iso12207-6.4.9-001")).String()
	if ours == dns {
		t.Error("point IDs must be scoped to the project namespace, not NameSpaceDNS")
	}
}
