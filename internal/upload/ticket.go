package upload

import (
	"sync"
	"time"
)

// Ticket models the platform's bounded-lifetime allowance for running after
// the app leaves the foreground. Begin returns a release func that is safe to
// call more than once; the ticket self-releases when its budget expires, which
// is cleanup, not an error.
type Ticket interface {
	Begin() (release func())
}

// NopTicket grants unbounded execution, for tests and platforms without a
// background budget.
type NopTicket struct{}

func (NopTicket) Begin() func() { return func() {} }

// BudgetTicket tracks in-flight work against a fixed per-task budget, letting
// shutdown wait for outstanding uploads without blocking on a hung call.
type BudgetTicket struct {
	budget time.Duration
	wg     sync.WaitGroup
}

func NewBudgetTicket(budget time.Duration) *BudgetTicket {
	if budget <= 0 {
		budget = 25 * time.Second
	}
	return &BudgetTicket{budget: budget}
}

func (t *BudgetTicket) Begin() func() {
	t.wg.Add(1)
	var once sync.Once
	done := func() { once.Do(t.wg.Done) }
	timer := time.AfterFunc(t.budget, done)
	return func() {
		timer.Stop()
		done()
	}
}

// Wait blocks until all begun work has released or expired.
func (t *BudgetTicket) Wait() {
	t.wg.Wait()
}
