package bingo

import "fmt"

// Status is the lifecycle state of a room.
type Status string

const (
	StatusWaiting  Status = "WAITING"
	StatusRunning  Status = "RUNNING"
	StatusFinished Status = "FINISHED"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusWaiting, StatusRunning, StatusFinished:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown room status %q", ErrValidation, s)
}

func (s Status) rank() int {
	switch s {
	case StatusWaiting:
		return 0
	case StatusRunning:
		return 1
	case StatusFinished:
		return 2
	}
	return -1
}

// CanTransition reports whether moving from s to next is allowed. Status
// only moves forward; WAITING may go straight to FINISHED through a close.
func (s Status) CanTransition(next Status) bool {
	from, to := s.rank(), next.rank()
	if from < 0 || to < 0 {
		return false
	}
	return to > from
}

// EnsureOpen rejects player-facing mutations once the room is finished.
func (s Status) EnsureOpen() error {
	if s == StatusFinished {
		return ErrRoomClosed
	}
	return nil
}

// AfterDraw is the status a room holds once a draw has been recorded.
func (s Status) AfterDraw() (Status, error) {
	if err := s.EnsureOpen(); err != nil {
		return s, err
	}
	return StatusRunning, nil
}

// Finish is the status a room holds once a win or close is recorded.
func (s Status) Finish() (Status, error) {
	if s == StatusFinished {
		return s, ErrAlreadyFinished
	}
	return StatusFinished, nil
}
