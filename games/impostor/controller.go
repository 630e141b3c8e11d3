/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package impostor

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
)

var (
	ErrInvalidStage = errors.New("operation not valid in current stage")
	ErrWordFetch    = errors.New("unable to fetch secret word")
)

// Picker returns a uniformly distributed integer in [0, n).
type Picker func(n int) int

type Option func(*Controller)

// WithPlayerCount sets the initial player count, clamped to the allowed range.
func WithPlayerCount(n int) Option {
	return func(c *Controller) {
		c.playerCount = clampPlayers(n)
	}
}

// WithPicker replaces the random source used to choose the impostor.
func WithPicker(p Picker) Option {
	return func(c *Controller) {
		c.pick = p
	}
}

// Controller owns a single game session and advances it through its stages.
// All mutation goes through its methods.
type Controller struct {
	mu sync.Mutex

	provider    WordProvider
	pick        Picker
	playerCount int
	state       state
}

func NewController(provider WordProvider, opts ...Option) *Controller {
	c := &Controller{
		provider:    provider,
		pick:        rand.IntN,
		playerCount: DefaultPlayers,
		state:       setupState{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Controller) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state.stage()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return snapshotOf(c.state, c.playerCount)
}

// CurrentPlayer returns the player who should be holding the device.
func (c *Controller) CurrentPlayer() (Player, bool) {
	return c.Snapshot().CurrentPlayer()
}

// transitionLocked assumes c.mu is already held.
func (c *Controller) transitionLocked(op string, next state) error {
	from := c.state.stage()
	if !from.CanTransitionTo(next.stage()) {
		return fmt.Errorf("%s from %s: %w", op, from, ErrInvalidStage)
	}

	c.state = next

	return nil
}

func (c *Controller) SetPlayerCount(delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.state.(setupState); !ok {
		return fmt.Errorf("set player count from %s: %w", c.state.stage(), ErrInvalidStage)
	}

	// Bound delta first so the addition cannot overflow.
	delta = max(-MaxPlayers, min(MaxPlayers, delta))
	c.playerCount = clampPlayers(c.playerCount + delta)

	return nil
}

// StartGame draws a secret word and deals roles. The session sits in FETCHING
// while the provider is consulted; any other operation, including a second
// StartGame, is rejected until the draw settles.
//
// If the provider fails the session moves to ERROR and the returned error
// wraps ErrWordFetch. Only ResetGame leaves that stage.
func (c *Controller) StartGame(ctx context.Context) error {
	c.mu.Lock()
	if err := c.transitionLocked("start game", fetchingState{}); err != nil {
		c.mu.Unlock()

		return err
	}
	n := c.playerCount
	c.mu.Unlock()

	word, err := c.provider.FetchWord(ctx)
	if err == nil && strings.TrimSpace(word.Word) == "" {
		err = errors.New("provider returned an empty word")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.state = errorState{message: FetchErrorMessage}

		return fmt.Errorf("%w: %w", ErrWordFetch, err)
	}

	impostor := c.pick(n) % n
	if impostor < 0 {
		impostor += n
	}

	r := newRound(n, impostor, word)

	return c.transitionLocked("start game", passDeviceState{round: r})
}

func (c *Controller) RevealRole() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.state.(passDeviceState)
	if !ok {
		return fmt.Errorf("reveal role from %s: %w", c.state.stage(), ErrInvalidStage)
	}

	s.round.players[s.index].HasSeenRole = true

	return c.transitionLocked("reveal role", revealRoleState{round: s.round, index: s.index})
}

func (c *Controller) FinishTurn() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.state.(revealRoleState)
	if !ok {
		return fmt.Errorf("finish turn from %s: %w", c.state.stage(), ErrInvalidStage)
	}

	if s.index == len(s.round.players)-1 {
		return c.transitionLocked("finish turn", gameStartState{round: s.round})
	}

	return c.transitionLocked("finish turn", passDeviceState{round: s.round, index: s.index + 1})
}

// ResetGame returns to SETUP, keeping only the player count.
func (c *Controller) ResetGame() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.transitionLocked("reset game", setupState{})
}
