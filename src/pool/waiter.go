package pool

// anonWaiter is one caller blocked for anonymous capacity. Each waiter owns
// a buffered channel that receives at most one message: a connection id when
// an available connection is handed off directly, or the empty string when
// capacity may have opened up and the waiter should retry. Sends happen only
// while the waiter is being popped from the queue under the pool mutex, so
// they can never block and never race a withdrawal.
type anonWaiter struct {
	language string
	ch       chan string
}

func newAnonWaiter(language string) *anonWaiter {
	return &anonWaiter{
		language: language,
		ch:       make(chan string, 1),
	}
}

// languageCompatible reports whether a pooled connection can serve a request
// for wantLanguage. An unspecified language on either side matches anything.
func languageCompatible(connLanguage, wantLanguage string) bool {
	return wantLanguage == "" || connLanguage == "" || connLanguage == wantLanguage
}

// removeWaiterLocked withdraws w from the queue. It returns false when w was
// already popped, which means a handoff or retry signal is committed and
// sitting in w.ch.
func (p *ConnectionPool) removeWaiterLocked(w *anonWaiter) bool {
	for i, cand := range p.waiters {
		if cand == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// handOffLocked transfers an available anonymous connection to the oldest
// compatible waiter. The checkout is recorded before the id is sent, so the
// connection is never observable as available in between.
func (p *ConnectionPool) handOffLocked(conn *Connection) bool {
	for i, w := range p.waiters {
		if !languageCompatible(conn.language, w.language) {
			continue
		}
		p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
		conn.checkout()
		w.ch <- conn.id
		return true
	}
	return false
}

// signalWaiterLocked wakes the oldest waiter for a retry after capacity was
// freed without a connection to hand over (removal, factory failure).
func (p *ConnectionPool) signalWaiterLocked() {
	if len(p.waiters) == 0 {
		return
	}
	w := p.waiters[0]
	p.waiters = p.waiters[1:]
	w.ch <- ""
}

// signalAllWaitersLocked wakes every waiter for a retry. Used when the pool
// is cleared or closed and the capacity picture changed wholesale.
func (p *ConnectionPool) signalAllWaitersLocked() {
	for _, w := range p.waiters {
		w.ch <- ""
	}
	p.waiters = nil
}
