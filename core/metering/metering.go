// Package metering holds the minutes-balance accounting that gates question creation.
// All functions are pure: they take the current state and return the new one.
package metering

import "github.com/trezcool/qsnap/core"

const (
	DefaultQuestionCost   = 15  // minutes charged per accepted question
	DefaultTopUpMinutes   = 60  // minutes credited per purchased unit
	DefaultInitialBalance = 120 // minutes granted on first login
)

// Policy carries the metering constants.
type Policy struct {
	QuestionCost   int
	TopUpMinutes   int
	DefaultBalance int
}

func DefaultPolicy() Policy {
	return Policy{
		QuestionCost:   DefaultQuestionCost,
		TopUpMinutes:   DefaultTopUpMinutes,
		DefaultBalance: DefaultInitialBalance,
	}
}

// NewPolicy builds a Policy from conf, falling back to the defaults for unset values.
func NewPolicy(conf core.MeteringConfig) Policy {
	p := DefaultPolicy()
	if conf.QuestionCost > 0 {
		p.QuestionCost = conf.QuestionCost
	}
	if conf.TopUpMinutes > 0 {
		p.TopUpMinutes = conf.TopUpMinutes
	}
	if conf.DefaultBalance > 0 {
		p.DefaultBalance = conf.DefaultBalance
	}
	return p
}

// CanAdmit reports whether `balance` covers `cost`.
func CanAdmit(balance, cost int) bool {
	return balance >= cost
}

// Debit returns the balance after charging `cost`. It never goes below zero.
func Debit(balance, cost int) int {
	if cost < 0 {
		cost = 0
	}
	if balance-cost < 0 {
		return 0
	}
	return balance - cost
}

// Credit returns the balance after adding `amount`. Negative amounts are ignored.
func Credit(balance, amount int) int {
	if amount < 0 {
		amount = 0
	}
	return balance + amount
}

// CreditAnswerCount returns the answer count after one resolution.
func CreditAnswerCount(count int) int {
	return count + 1
}

// CanAdmit reports whether `balance` covers one question.
func (p Policy) CanAdmit(balance int) bool {
	return CanAdmit(balance, p.QuestionCost)
}

// ChargeQuestion returns the balance after charging one question.
func (p Policy) ChargeQuestion(balance int) int {
	return Debit(balance, p.QuestionCost)
}

// TopUp returns the balance after crediting `units` purchased units.
func (p Policy) TopUp(balance, units int) int {
	return Credit(balance, units*p.TopUpMinutes)
}
