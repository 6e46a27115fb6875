package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

func TestGenerateOrderNumber(t *testing.T) {
	created := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		id   int64
		want string
	}{
		{name: "single digit", id: 7, want: "Enc2024/000007"},
		{name: "two digits", id: 42, want: "Enc2024/000042"},
		{name: "six digits", id: 999999, want: "Enc2024/999999"},
		{name: "seven digits grow the field", id: 1234567, want: "Enc2024/1234567"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := domain.Order{ID: tc.id, CreatedAt: created}
			got, err := domain.GenerateOrderNumber(order)
			if err != nil {
				t.Fatalf("GenerateOrderNumber() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("GenerateOrderNumber() = %q, want %q", got, tc.want)
			}
			again, _ := domain.GenerateOrderNumber(order)
			if again != got {
				t.Fatalf("generator is not deterministic: %q vs %q", got, again)
			}
		})
	}
}

func TestGenerateOrderNumber_NotPersisted(t *testing.T) {
	cases := []domain.Order{
		{ID: 0, CreatedAt: time.Now()},
		{ID: 5},
	}
	for _, order := range cases {
		if _, err := domain.GenerateOrderNumber(order); !errors.Is(err, domain.ErrOrderNotPersisted) {
			t.Fatalf("expected ErrOrderNotPersisted, got %v", err)
		}
	}
}
