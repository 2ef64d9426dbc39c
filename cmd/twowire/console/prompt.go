package console

import (
	"strings"

	"github.com/chzyer/readline"
)

// Confirm asks a yes/no question. Anything but an explicit yes is a no.
func Confirm(question string) (bool, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt: question + " [y/N]: ",
		Stdout: writer,
		Stderr: errWriter,
	})
	if err != nil {
		return false, err
	}
	defer rl.Close()
	answer, err := rl.Readline()
	if err != nil {
		return false, err
	}
	return isYes(answer), nil
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
