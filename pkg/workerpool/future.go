package workerpool

// Future is a caller-facing, one-shot channel conveying the return value
// (or propagated error) of a callable submitted through SubmitFor. It is
// safe to drop a Future without ever calling Get: the buffered channel
// backing it holds at most one value, so the worker that fulfils it
// never blocks on an abandoned reader.
//
// The zero Future is empty and represents the overflow case: admission
// failed and the task was never scheduled. Get on an empty Future
// returns ErrEmptyFuture immediately instead of blocking forever.
type Future[T any] struct {
	ch <-chan futureResult[T]
}

type futureResult[T any] struct {
	val T
	err error
}

// Empty reports whether f was ever attached to a scheduled task.
func (f Future[T]) Empty() bool {
	return f.ch == nil
}

// Get blocks until the task has executed, then returns its result or the
// error escaping its body. It returns ErrEmptyFuture immediately on an
// empty Future.
func (f Future[T]) Get() (T, error) {
	var zero T
	if f.ch == nil {
		return zero, ErrEmptyFuture
	}
	r := <-f.ch
	return r.val, r.err
}

// submitter is the minimal surface SubmitFor needs from a pool variant:
// enqueue a fully-formed Task and report whether it was admitted.
// All three pool variants implement it, which lets SubmitFor live once
// instead of being hand-written per variant.
type submitter interface {
	submitTask(Task) (admitted bool, err error)
}

// SubmitFor wraps fn into a Task that feeds its result into the returned
// Future, then submits it to p following that pool's normal submit
// semantics. On overflow the returned Future is empty (see Future.Get)
// regardless of whether a refuse-callback recovered the underlying task
// into the overflow buffer: overflow is signalled through the handle,
// never by blocking the caller, and a rehomed task runs somewhere this
// pool no longer speaks for.
func SubmitFor[T any](p submitter, fn func() (T, error)) (Future[T], error) {
	ch := make(chan futureResult[T], 1)
	task := NewTask(func() error {
		v, err := fn()
		ch <- futureResult[T]{val: v, err: err}
		return nil
	})

	admitted, err := p.submitTask(task)
	if err != nil {
		return Future[T]{}, err
	}
	if !admitted {
		return Future[T]{}, nil
	}
	return Future[T]{ch: ch}, nil
}
