// Package timecode разбирает отметки времени видео в форматах SS, MM:SS и HH:MM:SS.
package timecode

import (
	"errors"
	"strconv"
	"strings"
)

// ErrFormat неверный формат отметки времени.
var ErrFormat = errors.New("time must be SS, MM:SS or HH:MM:SS")

// Parse возвращает количество секунд для отметки времени.
func Parse(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) == 0 || len(parts) > 3 {
		return 0, ErrFormat
	}

	total := 0
	for i, p := range parts {
		if p == "" || len(p) > 2 && i > 0 {
			return 0, ErrFormat
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, ErrFormat
		}
		// минуты и секунды после первого поля не больше 59
		if i > 0 && n > 59 {
			return 0, ErrFormat
		}
		total = total*60 + n
	}
	return total, nil
}

// Valid сообщает, корректна ли отметка времени.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}
