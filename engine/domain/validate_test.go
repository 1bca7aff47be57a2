package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateQuery(t *testing.T) {
	if err := ValidateQuery(Query{Message: "What is ROS 2?"}); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestValidateQuery_Blank(t *testing.T) {
	for _, msg := range []string{"", "   ", "\n\t"} {
		err := ValidateQuery(Query{Message: msg})
		if !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("message %q: expected ErrInvalidQuery, got %v", msg, err)
		}
	}
}

func TestValidateQuery_Length(t *testing.T) {
	ok := strings.Repeat("a", MaxMessageChars)
	if err := ValidateQuery(Query{Message: ok}); err != nil {
		t.Fatalf("5000 chars should be valid: %v", err)
	}

	err := ValidateQuery(Query{Message: ok + "a"})
	if !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
	if !errors.Is(err, ErrInvalidQuery) {
		t.Fatal("ErrMessageTooLong should also match ErrInvalidQuery")
	}
}

func TestValidateQuery_CountsRunes(t *testing.T) {
	msg := strings.Repeat("é", MaxMessageChars)
	if err := ValidateQuery(Query{Message: msg}); err != nil {
		t.Fatalf("multi-byte message within limit rejected: %v", err)
	}
}

func TestValidateQuery_SessionID(t *testing.T) {
	err := ValidateQuery(Query{Message: "hi", SessionID: strings.Repeat("x", 256)})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "session_id" {
		t.Fatalf("expected session_id validation error, got %v", err)
	}
}

func TestValidateQuery_HistoryRole(t *testing.T) {
	q := Query{Message: "hi", History: []Turn{{Role: "system", Content: "x"}}}
	if err := ValidateQuery(q); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected invalid role error, got %v", err)
	}
	q.History = []Turn{{Role: RoleUser, Content: "a"}, {Role: RoleAssistant, Content: "b"}}
	if err := ValidateQuery(q); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidationError_Error(t *testing.T) {
	ve := NewValidationError("message", "", ErrInvalidQuery)
	s := ve.Error()
	if !strings.Contains(s, "message") || !strings.Contains(s, "invalid query") {
		t.Fatalf("unexpected error string: %s", s)
	}
}

func TestDimensionError(t *testing.T) {
	err := DimensionError("embed", 384, 1536)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatal("expected ErrDimensionMismatch")
	}
	if !strings.Contains(err.Error(), "want 384, got 1536") {
		t.Fatalf("unexpected message: %s", err)
	}
}

func TestClassifyPath(t *testing.T) {
	cases := map[string]string{
		"docs/module-01-ros2/chapter-01.md":          "Module 1: ROS 2",
		"docs/module-02-simulation/gazebo.md":        "Module 2: Simulation",
		"frontend/docs/module-03-isaac/isaac-sim.md": "Module 3: NVIDIA Isaac",
		"docs\\module-04-vla\\voice.md":              "Module 4: VLA Systems",
		"docs/intro.md":                              GeneralChapter,
		"docs/module-05-capstone/project.md":         GeneralChapter,
	}
	for path, want := range cases {
		if got := ClassifyPath(path); got != want {
			t.Errorf("ClassifyPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestChunkKey(t *testing.T) {
	c := Chunk{DocumentID: "module-01-ros2/intro", Index: 3}
	if c.Key() != "module-01-ros2/intro_3" {
		t.Fatalf("unexpected key %q", c.Key())
	}
}
