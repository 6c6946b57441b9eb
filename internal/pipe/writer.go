// Package pipe implements the bounded, index-ordered frame queue
// between the renderer and the video encoder subprocess. Render
// workers submit frames in any order; a dedicated drain goroutine
// writes them to the encoder's stdin in strictly ascending index
// order, blocking submitters once the backlog reaches the configured
// limit so a fast renderer cannot grow memory without bound.
package pipe

import (
	"errors"
	"fmt"
	"io"
	"sync"

	applog "mmv/internal/log"
)

// State is the writer lifecycle: Idle -> Open -> Draining -> Closed.
type State uint32

const (
	StateIdle State = iota
	StateOpen
	StateDraining
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateOpen:
		return "Open"
	case StateDraining:
		return "Draining"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Submission errors. Both indicate integration bugs in the caller and
// are fatal: a duplicate or out-of-range index means frame ordering
// can no longer be trusted.
var (
	ErrDuplicateFrame  = errors.New("frame index already submitted")
	ErrIndexOutOfRange = errors.New("frame index out of range")
	ErrNotOpen         = errors.New("frame pipe is not open")
	ErrAlreadyOpen     = errors.New("frame pipe already opened")
)

// Writer owns the encoder's input stream from Open until Closed; no
// other component writes to it. All mutation of the frame buffer
// happens under mu; the condition variable replaces the poll/sleep
// loop this design started from, so submitters and the drain loop
// wake each other exactly when there is work.
type Writer struct {
	out io.WriteCloser

	mu   sync.Mutex
	cond *sync.Cond

	state       State
	frames      map[int][]byte
	next        int // next frame index to write
	total       int // expected total frame count
	maxBuffered int
	writing     bool // a payload write is in flight
	err         error

	done chan struct{}
}

// NewWriter wraps the encoder input stream. Open must be called before
// frames are submitted.
func NewWriter(out io.WriteCloser) *Writer {
	w := &Writer{out: out, state: StateIdle}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Open transitions Idle -> Open, resets the ordered buffer and the
// next-expected index, and starts the drain goroutine. totalFrames is
// the index after which the writer drains and closes on its own;
// maxBuffered bounds the backlog of submitted-but-unwritten frames.
func (w *Writer) Open(totalFrames, maxBuffered int) error {
	if totalFrames <= 0 {
		return fmt.Errorf("pipe: total frames must be positive, got %d", totalFrames)
	}
	if maxBuffered <= 0 {
		return fmt.Errorf("pipe: max buffered frames must be positive, got %d", maxBuffered)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateIdle {
		return fmt.Errorf("%w: state %s", ErrAlreadyOpen, w.state)
	}

	w.state = StateOpen
	w.frames = make(map[int][]byte, maxBuffered)
	w.next = 0
	w.total = totalFrames
	w.maxBuffered = maxBuffered
	w.done = make(chan struct{})

	go w.drainLoop()

	applog.Debugf("pipe: open, %d frames expected, backlog limit %d", totalFrames, maxBuffered)
	return nil
}

// Submit hands one rendered frame to the writer. Safe for concurrent
// use by multiple render workers. Blocks while the backlog is full,
// resuming when the drain loop writes a frame out. The payload is
// owned by the writer from here until it is written.
func (w *Writer) Submit(index int, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateOpen {
		return fmt.Errorf("%w: state %s", ErrNotOpen, w.state)
	}
	if index < 0 || index >= w.total {
		return fmt.Errorf("%w: index %d, expected [0, %d)", ErrIndexOutOfRange, index, w.total)
	}
	if err := w.checkIndexLocked(index); err != nil {
		return err
	}

	// Backpressure: wait until the drain loop makes room. The
	// next-expected index is exempt, otherwise a full backlog of
	// later frames would block the only frame that can drain it.
	// State can change while waiting (Abort, write failure), so
	// recheck it.
	for len(w.frames) >= w.maxBuffered && w.state == StateOpen && index != w.next {
		w.cond.Wait()
	}
	if w.state != StateOpen {
		return fmt.Errorf("%w: state %s", ErrNotOpen, w.state)
	}
	// Another submitter may have inserted this index, or the drain
	// loop may have written past it, while we waited. Re-validate
	// before inserting so a duplicate never lands silently.
	if err := w.checkIndexLocked(index); err != nil {
		return err
	}

	w.frames[index] = payload
	w.cond.Broadcast()
	return nil
}

// checkIndexLocked rejects indices that are already buffered or
// already written. Callers hold mu.
func (w *Writer) checkIndexLocked(index int) error {
	if index < w.next {
		return fmt.Errorf("%w: index %d already written", ErrDuplicateFrame, index)
	}
	if _, dup := w.frames[index]; dup {
		return fmt.Errorf("%w: index %d", ErrDuplicateFrame, index)
	}
	return nil
}

// drainLoop runs until the writer is Closed. It writes w.frames[w.next]
// whenever present, each payload as one atomic Write call, and closes
// the output stream once draining finishes.
func (w *Writer) drainLoop() {
	w.mu.Lock()
	for {
		if w.state == StateClosed {
			w.mu.Unlock()
			return
		}

		if payload, ok := w.frames[w.next]; ok {
			delete(w.frames, w.next)
			w.writing = true
			w.mu.Unlock()

			_, err := w.out.Write(payload)

			w.mu.Lock()
			w.writing = false
			if err != nil {
				if w.err == nil {
					w.err = fmt.Errorf("pipe: writing frame %d: %w", w.next, err)
					applog.Errorf("pipe: frame %d write failed: %v", w.next, err)
				}
				// A broken stream will not accept the rest of the
				// render; drop the backlog and finish instead of
				// pushing every remaining frame into the error.
				if len(w.frames) > 0 {
					applog.Warnf("pipe: discarding %d frames after write failure", len(w.frames))
					w.frames = make(map[int][]byte)
				}
				if w.state == StateOpen {
					w.state = StateDraining
				}
			}
			w.next++
			if w.next == w.total && w.state == StateOpen {
				w.state = StateDraining
			}
			w.cond.Broadcast()
			continue
		}

		if w.state == StateDraining {
			// Buffer is empty or the next index will never arrive.
			// Anything still buffered is unreachable past a gap.
			if len(w.frames) > 0 {
				applog.Warnf("pipe: discarding %d unreachable frames past index %d",
					len(w.frames), w.next)
				w.frames = make(map[int][]byte)
			}
			w.finishLocked()
			w.mu.Unlock()
			return
		}

		w.cond.Wait()
	}
}

// finishLocked closes the output stream and transitions to Closed.
// Callers hold mu.
func (w *Writer) finishLocked() {
	if err := w.out.Close(); err != nil && w.err == nil {
		w.err = fmt.Errorf("pipe: closing output: %w", err)
	}
	w.state = StateClosed
	w.cond.Broadcast()
	close(w.done)
	applog.Debugf("pipe: closed after %d frames", w.next)
}

// Close transitions to Draining (if not already) and blocks until
// every buffered frame has been written, no write is in flight and the
// output stream is closed. Safe to call from a different goroutine
// than Submit. Returns the first write error encountered, if any.
func (w *Writer) Close() error {
	w.mu.Lock()
	switch w.state {
	case StateIdle:
		// Never opened: just close the stream.
		err := w.out.Close()
		w.state = StateClosed
		w.mu.Unlock()
		return err
	case StateClosed:
		err := w.err
		w.mu.Unlock()
		return err
	case StateOpen:
		w.state = StateDraining
		w.cond.Broadcast()
	}
	done := w.done
	w.mu.Unlock()

	<-done

	w.mu.Lock()
	err := w.err
	w.mu.Unlock()
	return err
}

// Abort is the early-termination path: outstanding unsent frames are
// discarded and the output stream is closed as soon as any in-flight
// frame write completes. No partial frame is ever written.
func (w *Writer) Abort() error {
	w.mu.Lock()
	switch w.state {
	case StateIdle:
		err := w.out.Close()
		w.state = StateClosed
		w.mu.Unlock()
		return err
	case StateClosed:
		err := w.err
		w.mu.Unlock()
		return err
	}

	dropped := len(w.frames)
	w.frames = make(map[int][]byte)
	w.state = StateDraining
	w.cond.Broadcast()
	done := w.done
	w.mu.Unlock()

	if dropped > 0 {
		applog.Warnf("pipe: abort, dropped %d unsent frames", dropped)
	}

	<-done

	w.mu.Lock()
	err := w.err
	w.mu.Unlock()
	return err
}

// State returns the current lifecycle state.
func (w *Writer) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Buffered returns the number of submitted-but-unwritten frames.
func (w *Writer) Buffered() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.frames)
}

// Written returns how many frames have been written so far.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.next
}
