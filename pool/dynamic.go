package pool

import "github.com/panjf2000/ants/v2"

// NewDynamic returns an unbounded pool. panicHandler, if not nil, receives values
// recovered from submitted functions.
func NewDynamic(panicHandler func(any)) (Pool, error) {
	opts := []ants.Option{}
	if panicHandler != nil {
		opts = append(opts, ants.WithPanicHandler(panicHandler))
	}
	p, err := ants.NewPool(-1, opts...)
	if err != nil {
		return nil, err
	}
	return p, nil
}
