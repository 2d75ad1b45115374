package engine

import "tin/internal/domain"

// Reconcile decides the single order action for a ticker from the current
// held quantity and the target quantity. Rules, in precedence order:
//
//  1. A positive target buys the target quantity, whatever is held.
//  2. Nothing held, or a zero target, does nothing.
//  3. A negative target sells, capped at the held quantity.
//
// Reconcile is pure and total for current >= 0.
func Reconcile(current, target int64) domain.Decision {
	if target > 0 {
		return domain.Buy(target)
	}
	if current == 0 || target == 0 {
		return domain.NoAction()
	}
	return domain.Sell(min(current, -target))
}
