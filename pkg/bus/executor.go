package bus

// Executor runs handler invocations. *worker.Pool satisfies it.
type Executor interface {
	Submit(task func()) error
}

type inline struct{}

func (inline) Submit(task func()) error {
	go task()
	return nil
}

// Inline runs each message on its own goroutine.
var Inline Executor = inline{}
