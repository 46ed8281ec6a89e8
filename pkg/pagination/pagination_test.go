package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	if NormalizeLimit(0) != DefaultLimit {
		t.Fatal("zero limit should normalize to default")
	}
	if NormalizeLimit(-5) != DefaultLimit {
		t.Fatal("negative limit should normalize to default")
	}
	if NormalizeLimit(MaxLimit+1) != MaxLimit {
		t.Fatal("oversized limit should cap at max")
	}
	if NormalizeLimit(10) != 10 {
		t.Fatal("in-range limit should pass through")
	}
}

func TestCursorRoundTrip(t *testing.T) {
	cursor := Cursor{CreatedAt: time.Now().UTC().Truncate(time.Microsecond), ID: uuid.New()}
	parsed, err := ParseCursor(EncodeCursor(cursor))
	if err != nil {
		t.Fatalf("parse cursor: %v", err)
	}
	if parsed == nil || !parsed.CreatedAt.Equal(cursor.CreatedAt) || parsed.ID != cursor.ID {
		t.Fatalf("cursor mismatch: %+v", parsed)
	}
}

func TestParseCursorEmptyAndInvalid(t *testing.T) {
	parsed, err := ParseCursor("  ")
	if err != nil || parsed != nil {
		t.Fatal("blank cursor should return nil, nil")
	}
	if _, err := ParseCursor("not-base64!!"); err == nil {
		t.Fatal("invalid cursor should error")
	}
}
