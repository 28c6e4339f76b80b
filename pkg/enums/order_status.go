package enums

import (
	"fmt"
	"strings"
)

// OrderStatus tracks an order from placement to completion.
type OrderStatus string

const (
	OrderStatusUnpaid      OrderStatus = "UNPAID"
	OrderStatusUnsent      OrderStatus = "UNSENT"
	OrderStatusUnreceived  OrderStatus = "UNRECEIVED"
	OrderStatusUncommented OrderStatus = "UNCOMMENTED"
	OrderStatusCompleted   OrderStatus = "COMPLETED"
	OrderStatusCanceled    OrderStatus = "CANCELED"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusUnpaid,
	OrderStatusUnsent,
	OrderStatusUnreceived,
	OrderStatusUncommented,
	OrderStatusCompleted,
	OrderStatusCanceled,
}

// allowed forward transitions; anything else is a state conflict.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusUnpaid:      {OrderStatusUnsent, OrderStatusCanceled},
	OrderStatusUnsent:      {OrderStatusUnreceived},
	OrderStatusUnreceived:  {OrderStatusUncommented},
	OrderStatusUncommented: {OrderStatusCompleted},
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range orderTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validOrderStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
