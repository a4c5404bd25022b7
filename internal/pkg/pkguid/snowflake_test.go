package pkguid

import "testing"

func TestGenerateRandomNodeIDRange(t *testing.T) {
	id, err := generateRandomNodeID()
	if err != nil {
		t.Fatalf("generateRandomNodeID: %v", err)
	}
	if id < 0 || id > 1023 {
		t.Fatalf("expected id within 0..1023, got %d", id)
	}
}

func TestSnowflakeGenerateUnique(t *testing.T) {
	gen, err := NewSnowflake()
	if err != nil {
		t.Fatalf("NewSnowflake: %v", err)
	}

	seen := make(map[int64]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := gen.Generate()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = struct{}{}
	}
}

func TestNewSnowflakeNodeRange(t *testing.T) {
	if _, err := NewSnowflakeNode(-1); err == nil {
		t.Fatal("expected error for negative node id")
	}
	if _, err := NewSnowflakeNode(1024); err == nil {
		t.Fatal("expected error for node id above 1023")
	}
	if _, err := NewSnowflakeNode(7); err != nil {
		t.Fatalf("NewSnowflakeNode(7): %v", err)
	}
}
