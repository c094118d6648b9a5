package models

// statusRank orders the forward path of an order; cancelled sits outside it.
var statusRank = map[string]int{
	OrderStatusPending:   1,
	OrderStatusConfirmed: 2,
	OrderStatusCooking:   3,
	OrderStatusReady:     4,
	OrderStatusCompleted: 5,
}

var statusProgress = map[string]int{
	OrderStatusPending:   20,
	OrderStatusConfirmed: 40,
	OrderStatusCooking:   60,
	OrderStatusReady:     80,
	OrderStatusCompleted: 100,
	OrderStatusCancelled: 0,
}

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool {
	_, ok := statusProgress[s]
	return ok
}

// IsTerminalStatus reports whether no further transitions are allowed from s.
func IsTerminalStatus(s string) bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CanTransition reports whether an order may move from one status to another.
// Forward moves may skip steps, cancellation is allowed from any non-terminal
// status, and rewriting the current non-terminal status is allowed so that
// payment_verified can be flipped on its own.
func CanTransition(from, to string) bool {
	if !ValidOrderStatus(to) || IsTerminalStatus(from) {
		return false
	}
	if to == OrderStatusCancelled || from == to {
		return true
	}
	return statusRank[to] > statusRank[from]
}

// Progress maps a status to the percentage shown to customers.
func Progress(status string) int {
	return statusProgress[status]
}
