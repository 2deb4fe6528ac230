package neo4j

import "testing"

func TestGetStringMissingKeyReturnsEmpty(t *testing.T) {
	if got := getString(map[string]any{}, "chunk_id"); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestGetStringReturnsValue(t *testing.T) {
	if got := getString(map[string]any{"chunk_id": "c1"}, "chunk_id"); got != "c1" {
		t.Fatalf("expected c1, got %q", got)
	}
}

func TestGetIntHandlesInt64FromDriver(t *testing.T) {
	if got := getInt(map[string]any{"total_chunks_in_document": int64(12)}, "total_chunks_in_document"); got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}
}

func TestGetIntMissingKeyReturnsZero(t *testing.T) {
	if got := getInt(map[string]any{}, "total_chunks_in_document"); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestGetFloatHandlesFloat64FromDriver(t *testing.T) {
	if got := getFloat(map[string]any{"score": float64(1.5)}, "score"); got != 1.5 {
		t.Fatalf("expected 1.5, got %v", got)
	}
}

func TestGetFloatMissingKeyReturnsZero(t *testing.T) {
	if got := getFloat(map[string]any{}, "score"); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestGetMetadataParsesJSONString(t *testing.T) {
	got := getMetadata(map[string]any{"metadata_json": `{"chunkDate":"2024-01-01"}`}, "metadata_json")
	if got["chunkDate"] != "2024-01-01" {
		t.Fatalf("expected chunkDate in metadata, got %v", got)
	}
}

func TestGetMetadataEmptyStringReturnsNil(t *testing.T) {
	if got := getMetadata(map[string]any{}, "metadata_json"); got != nil {
		t.Fatalf("expected nil metadata, got %v", got)
	}
}
