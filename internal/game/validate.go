package game

import (
	"fmt"
	"math/rand"
	"strings"
	"unicode/utf8"
)

const (
	RoomCodeLength    = 4
	MaxNicknameLength = 20

	roomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

// RandomRoomCode draws a code from an alphabet without O, I, L, 0 and 1.
func RandomRoomCode() string {
	b := make([]byte, RoomCodeLength)
	for i := range b {
		b[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
	}
	return string(b)
}

func ValidateRoomCode(code string) error {
	if len(code) != RoomCodeLength {
		return fmt.Errorf("%w: must be exactly %d characters", ErrInvalidRoomCode, RoomCodeLength)
	}
	for _, c := range code {
		if !strings.ContainsRune(roomCodeAlphabet, c) {
			return fmt.Errorf("%w: unexpected character %q", ErrInvalidRoomCode, c)
		}
	}
	return nil
}

func ValidateNickname(nickname string) error {
	if strings.TrimSpace(nickname) == "" {
		return fmt.Errorf("%w: cannot be empty", ErrInvalidNickname)
	}
	if utf8.RuneCountInString(nickname) > MaxNicknameLength {
		return fmt.Errorf("%w: must be %d characters or less", ErrInvalidNickname, MaxNicknameLength)
	}
	return nil
}
