package client

import (
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// Direction is the slide direction of a page transition.
type Direction string

const (
	SlideLeft  Direction = "left"
	SlideRight Direction = "right"
)

// TransitionDuration is how long the slide animation plays before the
// navigation happens.
const TransitionDuration = 300 * time.Millisecond

// SlideDirection picks the animation direction from the source and target
// paths. The nav order is friends, home, quests, left to right; moving
// rightward along it slides left, anything else slides right. Only the
// "friends" and "quests" substrings matter, everything else ranks as home.
func SlideDirection(fromPath, toPath string) Direction {
	if pageRank(toPath) >= pageRank(fromPath) {
		return SlideLeft
	}
	return SlideRight
}

func pageRank(path string) int {
	switch {
	case strings.Contains(path, "friends"):
		return 0
	case strings.Contains(path, "quests"):
		return 2
	default:
		return 1
	}
}

// Transitioner plays the slide transition and then navigates. There is no
// error path: navigation always eventually happens.
type Transitioner struct {
	navigator interface{ Navigate(url string) }
	clock     clockwork.Clock
}

// NewTransitioner creates a transitioner reporting into navigator.
func NewTransitioner(navigator interface{ Navigate(url string) }, clock clockwork.Clock) *Transitioner {
	return &Transitioner{navigator: navigator, clock: clock}
}

// Go computes the direction, waits out the animation and navigates.
func (t *Transitioner) Go(fromPath, toPath string) Direction {
	direction := SlideDirection(fromPath, toPath)
	t.clock.Sleep(TransitionDuration)
	t.navigator.Navigate(toPath)
	return direction
}
