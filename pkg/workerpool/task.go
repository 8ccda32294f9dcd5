package workerpool

// Task is a handle to exactly one nullary callable awaiting or
// undergoing execution. A Task either holds a callable or is empty;
// Invoke is well defined only when non-empty.
//
// Task is move-only in spirit: Go has no move semantics, so the
// discipline is enforced by convention rather than the compiler, the
// same way sync.Mutex documents "must not be copied after first use".
// Never copy a Task by value once it has been handed to a pool; pass it
// by pointer, or take ownership of its callable with Take. A queue entry
// in this package is read once, as it leaves its queue (by Take or by
// reslicing it off the queue), never twice from the same slot.
//
// A second, small-buffer-optimised Task variant for callables that fit
// inline would add nothing in Go: a closure captured into a struct
// field already heap-escapes once it is stored behind a func() error
// field — there is no separate stack-resident representation to opt
// into, so this package has one Task type, not two call-compatible
// ones.
type Task struct {
	fn func() error
}

// NewTask constructs a Task owning fn. A nil fn produces an empty Task,
// equivalent to the zero value.
func NewTask(fn func() error) Task {
	return Task{fn: fn}
}

// Empty reports whether t holds no callable.
func (t *Task) Empty() bool {
	return t.fn == nil
}

// Reset replaces any callable currently held with fn, releasing the
// prior one.
func (t *Task) Reset(fn func() error) {
	t.fn = fn
}

// Invoke executes the held callable. Invoking an empty Task returns
// ErrEmptyTask.
func (t *Task) Invoke() error {
	if t.fn == nil {
		return ErrEmptyTask
	}
	return t.fn()
}

// Take moves the callable out of t into the returned Task, leaving t
// empty, so the callable lives in exactly one of the two afterwards.
func (t *Task) Take() Task {
	out := Task{fn: t.fn}
	t.fn = nil
	return out
}
