package domain_test

import (
	"errors"
	"testing"

	"github.com/msomdec/workville/internal/domain"
)

func TestClosesSession(t *testing.T) {
	tests := []struct {
		previous, next domain.Status
		want           bool
	}{
		{domain.StatusWorking, domain.StatusHome, true},
		{domain.StatusBreak, domain.StatusHome, true},
		{domain.StatusHome, domain.StatusHome, false},
		{domain.StatusHome, domain.StatusWorking, false},
		{domain.StatusWorking, domain.StatusBreak, false},
		{domain.StatusBreak, domain.StatusWorking, false},
	}
	for _, tt := range tests {
		if got := domain.ClosesSession(tt.previous, tt.next); got != tt.want {
			t.Errorf("ClosesSession(%s, %s) = %v, want %v", tt.previous, tt.next, got, tt.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := domain.ParseStatus("break"); err != nil || s != domain.StatusBreak {
		t.Fatalf("ParseStatus(break) = %q, %v", s, err)
	}
	if _, err := domain.ParseStatus("lunch"); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}
