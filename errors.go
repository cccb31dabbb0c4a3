package troupe

import "errors"

const Namespace = "troupe"

var (
	ErrAlreadyRunning  = errors.New(Namespace + ": runtime is already running")
	ErrInvalidConfig   = errors.New(Namespace + ": invalid configuration")
	ErrMailboxFull     = errors.New(Namespace + ": mailbox is full")
	ErrMailboxTimeout  = errors.New(Namespace + ": mailbox receive timed out")
	ErrReceivePanicked = errors.New(Namespace + ": receive panicked")
)
