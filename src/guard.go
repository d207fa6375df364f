package laika

/*------------------------------------------------------------------
 *
 * Purpose:	Scoped critical section against the serial interrupt.
 *
 * Description:	The original firmware brackets cross-cursor buffer
 *		operations with "save and disable the serial interrupt,
 *		restore on the way out" (ES0_SAVE_DISABLE/ES0_RESTORE).
 *		The Go rendition models the same thing as a guard that
 *		blocks on acquisition and returns its own restore
 *		function, so release happens on every exit path:
 *
 *			defer g.Block()()
 *
 *		The ring operations themselves stay lock free; the
 *		single-writer-per-cursor rule makes that sound.  The
 *		guard is taken in two places only: briefly by the
 *		interrupt-context entry points (the Go stand-in for
 *		"this interrupt source can be masked"), and by the
 *		foreground around operations that must see both
 *		cursors at once (reset, reinit).  Both hold it for as
 *		little as possible and never across anything that can
 *		itself wait.
 *
 *---------------------------------------------------------------*/

import "sync"

type InterruptGuard struct {
	mu sync.Mutex
}

// Block acquires the guard and returns the restore function.
func (g *InterruptGuard) Block() func() {
	g.mu.Lock()
	return g.mu.Unlock
}
