package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIsVersionConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "version conflict error",
			err:  ErrOrderVersionConflict,
			want: true,
		},
		{
			name: "wrapped version conflict error",
			err:  errors.Join(ErrOrderVersionConflict, errors.New("additional context")),
			want: true,
		},
		{
			name: "other error",
			err:  ErrOrderNotFound,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsVersionConflict(tt.err)
			if got != tt.want {
				t.Errorf("IsVersionConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsConstraintViolation(t *testing.T) {
	wrapped := fmt.Errorf("delete agency: %w", ErrConstraintViolation)
	if !IsConstraintViolation(wrapped) {
		t.Fatal("expected wrapped constraint violation to match")
	}
	if IsConstraintViolation(ErrWriteFailed) {
		t.Fatal("generic write failure must not be a constraint violation")
	}
}

func TestIsNotFound(t *testing.T) {
	for _, err := range []error{ErrAgencyNotFound, ErrShopNotFound, ErrOrderNotFound, ErrSessionNotFound} {
		if !IsNotFound(fmt.Errorf("lookup: %w", err)) {
			t.Errorf("IsNotFound(%v) = false, want true", err)
		}
	}
	if IsNotFound(ErrCatalogUnavailable) {
		t.Error("catalog fetch failure is not a not-found error")
	}
}

func TestIsValidation(t *testing.T) {
	if !IsValidation(ErrNegativeQuantity) {
		t.Error("negative quantity must be a validation error")
	}
	if !IsValidation(fmt.Errorf("submit: %w", ErrOrderNotSubmittable)) {
		t.Error("not submittable must be a validation error")
	}
	if IsValidation(ErrWriteFailed) {
		t.Error("write failure is not a validation error")
	}
}

func TestIsFetchFailure(t *testing.T) {
	if !IsFetchFailure(fmt.Errorf("load: %w", ErrCatalogUnavailable)) {
		t.Error("expected catalog failure to be a fetch failure")
	}
	if !IsFetchFailure(ErrOrdersUnavailable) {
		t.Error("expected orders failure to be a fetch failure")
	}
	if IsFetchFailure(nil) {
		t.Error("nil is not a fetch failure")
	}
}

func TestNewOrderEventMessage(t *testing.T) {
	msg, err := NewOrderEventMessage(EventOrderPlaced, OrderEvent{
		OrderID:       "order-1",
		ShopName:      "Corner",
		Status:        OrderStatusPending,
		LineCount:     2,
		TotalQuantity: TotalQuantity([]OrderLine{{Quantity: 3}, {Quantity: 4}}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.AggregateType != AggregateOrder || msg.AggregateID != "order-1" || msg.EventType != EventOrderPlaced {
		t.Fatalf("unexpected envelope: %+v", msg)
	}
	for _, want := range []string{`"total_quantity":7`, `"status":"Pending"`, `"occurred_at"`} {
		if !strings.Contains(string(msg.Payload), want) {
			t.Fatalf("payload %s does not contain %s", msg.Payload, want)
		}
	}
}
