package workerpool

import "sync"

// doneGroup is a thin sync.WaitGroup wrapper so pool structs can embed
// it by value without the "WaitGroup must not be copied" footgun: every
// pool constructor creates its waitgroup once and only ever accesses it
// through a pointer receiver.
type doneGroup struct {
	wg sync.WaitGroup
}

func (d *doneGroup) add(n int) { d.wg.Add(n) }
func (d *doneGroup) done()     { d.wg.Done() }
func (d *doneGroup) wait()     { d.wg.Wait() }
