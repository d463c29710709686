package model

// Strategy selects how a synthesized type's methods are bodied.
type Strategy string

const (
	StrategyStub        Strategy = "stub"
	StrategyForward     Strategy = "forward"
	StrategyLazyForward Strategy = "lazy_forward"
	StrategyMock        Strategy = "mock"
)

func (s Strategy) String() string { return string(s) }
