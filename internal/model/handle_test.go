package model

import (
	"errors"
	"testing"
)

func TestNormalizeHandle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: "alpha", want: "alpha"},
		{name: "leading at", input: "@Alpha", want: "alpha"},
		{name: "whitespace", input: "  beta.gamma_1 \n", want: "beta.gamma_1"},
		{name: "fullwidth compat form", input: "ＡＬＰＨＡ", want: "alpha"},
		{name: "empty", input: "   ", wantErr: true},
		{name: "only at", input: "@", wantErr: true},
		{name: "contains slash", input: "a/b", wantErr: true},
		{name: "contains space", input: "a b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeHandle(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidHandle) {
					t.Fatalf("NormalizeHandle(%q) error = %v, want ErrInvalidHandle", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeHandle(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeHandle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeHandleCaseVariantsCollide(t *testing.T) {
	t.Parallel()

	a, err := NormalizeHandle("JaneDoe")
	if err != nil {
		t.Fatal(err)
	}
	b, err := NormalizeHandle("@janedoe")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("case variants normalized differently: %q vs %q", a, b)
	}
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusProcessing, StatusChecked, true},
		{StatusProcessing, StatusPass, true},
		{StatusProcessing, StatusFail, true},
		{StatusPass, StatusChecked, true},
		{StatusFail, StatusChecked, true},
		{StatusChecked, StatusPending, false},
		{StatusProcessing, StatusPending, false},
		{StatusPending, StatusChecked, false},
		{StatusPass, StatusFail, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			t.Parallel()
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestPredecessorsOf(t *testing.T) {
	t.Parallel()

	got := PredecessorsOf(StatusChecked)
	want := map[Status]bool{StatusProcessing: true, StatusPass: true, StatusFail: true}
	if len(got) != len(want) {
		t.Fatalf("PredecessorsOf(checked) = %v", got)
	}
	for _, s := range got {
		if !want[s] {
			t.Errorf("unexpected predecessor %s", s)
		}
	}
}

func TestPlatformIsValid(t *testing.T) {
	t.Parallel()

	for _, p := range AllPlatforms() {
		if !p.IsValid() {
			t.Errorf("%s should be valid", p)
		}
	}
	if Platform("myspace").IsValid() {
		t.Error("unknown platform reported valid")
	}
}
