package provider

import (
	"context"
	"fmt"
	"sync"
)

// Call records one invocation against the Fake.
type Call struct {
	Op             string
	Ref            string
	Destination    string
	Amount         int64
	Currency       string
	IdempotencyKey string
}

// Fake is a scripted provider for tests and local development. Each operation
// dequeues the next scripted response for that op; an empty script confirms
// everything synchronously.
type Fake struct {
	mu      sync.Mutex
	calls   []Call
	scripts map[string][]fakeResponse
	seq     int
}

type fakeResponse struct {
	result *Result
	err    error
}

func NewFake() *Fake {
	return &Fake{scripts: map[string][]fakeResponse{}}
}

// Script enqueues a response for op ("capture", "transfer", "refund").
func (f *Fake) Script(op string, result *Result, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[op] = append(f.scripts[op], fakeResponse{result: result, err: err})
}

// Calls returns a copy of every recorded invocation.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsFor returns recorded invocations for one op.
func (f *Fake) CallsFor(op string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) Capture(ctx context.Context, paymentRef string, idempotencyKey string) (*Result, error) {
	return f.respond(Call{Op: "capture", Ref: paymentRef, IdempotencyKey: idempotencyKey})
}

func (f *Fake) Transfer(ctx context.Context, destination string, amount int64, currency string, idempotencyKey string) (*Result, error) {
	return f.respond(Call{Op: "transfer", Destination: destination, Amount: amount, Currency: currency, IdempotencyKey: idempotencyKey})
}

func (f *Fake) Refund(ctx context.Context, paymentRef string, amount int64, idempotencyKey string) (*Result, error) {
	return f.respond(Call{Op: "refund", Ref: paymentRef, Amount: amount, IdempotencyKey: idempotencyKey})
}

func (f *Fake) respond(c Call) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)

	if queue := f.scripts[c.Op]; len(queue) > 0 {
		next := queue[0]
		f.scripts[c.Op] = queue[1:]
		return next.result, next.err
	}
	f.seq++
	return &Result{Reference: fmt.Sprintf("fake_%s_%d", c.Op, f.seq), Confirmed: true}, nil
}
