package enums

import (
	"fmt"
	"strings"
)

// PayMethod is chosen at checkout and decides the initial order status.
type PayMethod string

const (
	PayMethodCash PayMethod = "CASH"
	PayMethodCard PayMethod = "CARD"
)

var validPayMethods = []PayMethod{
	PayMethodCash,
	PayMethodCard,
}

func (p PayMethod) String() string {
	return string(p)
}

func (p PayMethod) IsValid() bool {
	for _, candidate := range validPayMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// InitialOrderStatus returns UNSENT for cash on delivery and UNPAID otherwise.
func (p PayMethod) InitialOrderStatus() OrderStatus {
	if p == PayMethodCash {
		return OrderStatusUnsent
	}
	return OrderStatusUnpaid
}

// ParsePayMethod converts raw input into a PayMethod.
func ParsePayMethod(value string) (PayMethod, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validPayMethods {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pay method %q", value)
}
