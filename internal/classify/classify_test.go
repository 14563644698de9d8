package classify

import (
	"testing"

	"github.com/mtogate/mtogate/internal/config"
)

func TestClassifyDefaultRules(t *testing.T) {
	c, err := New(config.DefaultMaterialClasses())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []struct {
		code    string
		wantID  string
		matched bool
	}{
		{"07.01.001", "finished", true},
		{"05.02.003", "self-made", true},
		{"03.11.204", "purchased", true},
		{"99.00.001", "", false},
		{"5.02.003", "", false}, // prefix must match from the start
		{"", "", false},
	}
	for _, tc := range cases {
		class, ok := c.Classify(tc.code)
		if ok != tc.matched {
			t.Errorf("Classify(%q) matched=%v, want %v", tc.code, ok, tc.matched)
			continue
		}
		if ok && class.ID != tc.wantID {
			t.Errorf("Classify(%q) = %s, want %s", tc.code, class.ID, tc.wantID)
		}
	}
}

func TestFirstMatchWins(t *testing.T) {
	c, err := New([]config.MaterialClass{
		{ID: "broad", Pattern: `^03\.`, SourceForm: "purchase-order"},
		{ID: "narrow", Pattern: `^03\.11\.`, SourceForm: "purchase-order"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	class, ok := c.Classify("03.11.204")
	if !ok || class.ID != "broad" {
		t.Fatalf("got %s/%v, want broad (rule order decides)", class.ID, ok)
	}
}

func TestInvalidPattern(t *testing.T) {
	_, err := New([]config.MaterialClass{
		{ID: "bad", Pattern: `^07\.(`},
	})
	if err == nil {
		t.Fatal("expected compile error for unbalanced pattern")
	}
}

func TestClassMetadataCarriedThrough(t *testing.T) {
	c, err := New(config.DefaultMaterialClasses())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	class, ok := c.Classify("07.99")
	if !ok {
		t.Fatal("expected finished-goods match")
	}
	if class.SourceForm != "sales-order" {
		t.Fatalf("source form = %s, want sales-order", class.SourceForm)
	}
	if len(class.Columns) == 0 {
		t.Fatal("expected column recipe on class")
	}
}
