package bingo

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	RoomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	RoomCodeLength   = 6
)

var roomCodeRe = regexp.MustCompile(`^[A-Z0-9]{4,12}$`)

// GenerateRoomCode builds a code from an alphabet without look-alike glyphs.
func GenerateRoomCode(src Source, length int) string {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(RoomCodeAlphabet[src.IntN(len(RoomCodeAlphabet))])
	}
	return b.String()
}

// NormalizeRoomCode upper-cases a caller supplied code and checks its shape.
func NormalizeRoomCode(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if !roomCodeRe.MatchString(c) {
		return "", fmt.Errorf("%w: room code %q must be 4-12 letters or digits", ErrValidation, code)
	}
	return c, nil
}
