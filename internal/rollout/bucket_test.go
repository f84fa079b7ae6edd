package rollout

import "testing"

func TestBucket_Deterministic(t *testing.T) {
	first := Bucket("entity-1", "feature-a")
	if first < 0 || first > 99 {
		t.Fatalf("Bucket() = %d, want 0..99", first)
	}
	for i := 0; i < 100; i++ {
		if got := Bucket("entity-1", "feature-a"); got != first {
			t.Fatalf("bucket changed: %d then %d", first, got)
		}
	}
}

func TestBucket_EmptyEntity(t *testing.T) {
	if got := Bucket("", "feature-a"); got != -1 {
		t.Fatalf("Bucket(empty) = %d, want -1", got)
	}
}

func TestBucket_VariesAcrossResources(t *testing.T) {
	same := 0
	for i := 0; i < 50; i++ {
		id := string(rune('a' + i%26))
		if Bucket(id, "feature-a") == Bucket(id, "feature-b") {
			same++
		}
	}
	if same == 50 {
		t.Fatalf("buckets identical across resources for every entity; hash not mixing")
	}
}

func TestWithin_Boundaries(t *testing.T) {
	if !Within("e1", "f1", 100) {
		t.Fatalf("100%% must include everyone")
	}
	if Within("e1", "f1", 0) {
		t.Fatalf("0%% must exclude everyone")
	}
	if Within("", "f1", 99) {
		t.Fatalf("empty entity id must be excluded from partial rollouts")
	}
}
