package dlog

type (
	// ProgressFollower receives updates during long-running table
	// generation. StepStart announces a phase and how many Ticks it will
	// produce; a Tick is emitted per finished chunk of work.
	ProgressFollower interface {
		StepStart(desc string, intermediates int)
		Tick()
		StepDone()
	}

	EmptyFollower struct{}
)

func (*EmptyFollower) StepStart(_ string, _ int) {}
func (*EmptyFollower) Tick()                     {}
func (*EmptyFollower) StepDone()                 {}

var Follower ProgressFollower = &EmptyFollower{}
