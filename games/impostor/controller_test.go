/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package impostor

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

func fixedWord(word, category string) WordProvider {
	return ProviderFunc(func(context.Context) (WordEntry, error) {
		return WordEntry{Word: word, Category: category}, nil
	})
}

func failingProvider(err error) WordProvider {
	return ProviderFunc(func(context.Context) (WordEntry, error) {
		return WordEntry{}, err
	})
}

func Test_SetPlayerCountClamps(t *testing.T) {
	tests := []struct {
		name  string
		start int
		delta int
		want  int
	}{
		{"decrement at minimum", 3, -1, 3},
		{"increment at maximum", 12, 1, 12},
		{"large negative", 7, -100, 3},
		{"large positive", 5, 100, 12},
		{"within range", 4, 1, 5},
		{"zero delta", 6, 0, 6},
		{"max int at maximum", 12, math.MaxInt, 12},
		{"max int at minimum", 3, math.MaxInt, 12},
		{"min int at minimum", 3, math.MinInt, 3},
		{"min int at maximum", 12, math.MinInt, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(fixedWord("Perro", "Animales"), WithPlayerCount(tt.start))

			if err := c.SetPlayerCount(tt.delta); err != nil {
				t.Fatalf("SetPlayerCount(%d): %v", tt.delta, err)
			}

			if got := c.Snapshot().PlayerCount; got != tt.want {
				t.Errorf("player count = %d, want %d", got, tt.want)
			}
		})
	}
}

func Test_WithPlayerCountClamps(t *testing.T) {
	if got := NewController(nil, WithPlayerCount(1)).Snapshot().PlayerCount; got != MinPlayers {
		t.Errorf("player count = %d, want %d", got, MinPlayers)
	}

	if got := NewController(nil, WithPlayerCount(40)).Snapshot().PlayerCount; got != MaxPlayers {
		t.Errorf("player count = %d, want %d", got, MaxPlayers)
	}

	if got := NewController(nil).Snapshot().PlayerCount; got != DefaultPlayers {
		t.Errorf("player count = %d, want %d", got, DefaultPlayers)
	}
}

func Test_StartGameDealsOneImpostor(t *testing.T) {
	for n := MinPlayers; n <= MaxPlayers; n++ {
		for impostor := 0; impostor < n; impostor++ {
			c := NewController(fixedWord("Playa", "Lugares"),
				WithPlayerCount(n),
				WithPicker(func(int) int { return impostor }),
			)

			if err := c.StartGame(context.Background()); err != nil {
				t.Fatalf("StartGame: %v", err)
			}

			snap := c.Snapshot()
			if snap.Stage != StagePassDevice {
				t.Fatalf("stage = %s, want %s", snap.Stage, StagePassDevice)
			}
			if snap.CurrentPlayerIndex != 0 {
				t.Errorf("current player index = %d, want 0", snap.CurrentPlayerIndex)
			}
			if len(snap.Players) != n {
				t.Fatalf("len(players) = %d, want %d", len(snap.Players), n)
			}

			impostors := 0
			for i, p := range snap.Players {
				if p.ID != i+1 {
					t.Errorf("players[%d].ID = %d, want %d", i, p.ID, i+1)
				}
				if p.IsImpostor {
					impostors++
					if i != impostor {
						t.Errorf("impostor at %d, want %d", i, impostor)
					}
				}
			}
			if impostors != 1 {
				t.Errorf("impostors = %d, want 1", impostors)
			}

			if snap.SecretWord == nil || snap.SecretWord.Word != "Playa" || snap.SecretWord.Category != "Lugares" {
				t.Errorf("secret word = %+v", snap.SecretWord)
			}
		}
	}
}

func Test_PickerOutOfRangeStillDealsOneImpostor(t *testing.T) {
	tests := []struct {
		name string
		pick int
		want int
	}{
		{"equal to count", 4, 0},
		{"above count", 9, 1},
		{"negative", -1, 3},
		{"large negative", math.MinInt, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(fixedWord("Sushi", "Comida"),
				WithPlayerCount(4),
				WithPicker(func(int) int { return tt.pick }),
			)

			if err := c.StartGame(context.Background()); err != nil {
				t.Fatalf("StartGame: %v", err)
			}

			impostors := 0
			for i, p := range c.Snapshot().Players {
				if p.IsImpostor {
					impostors++
					if i != tt.want {
						t.Errorf("impostor at %d, want %d", i, tt.want)
					}
				}
			}
			if impostors != 1 {
				t.Errorf("impostors = %d, want 1", impostors)
			}
		})
	}
}

func Test_TurnLoopVisitsEveryPlayer(t *testing.T) {
	c := NewController(fixedWord("Tren", "Transporte"), WithPlayerCount(5))

	if err := c.StartGame(context.Background()); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	for i := 0; i < 5; i++ {
		snap := c.Snapshot()
		if snap.Stage != StagePassDevice {
			t.Fatalf("cycle %d: stage = %s, want %s", i, snap.Stage, StagePassDevice)
		}
		if snap.CurrentPlayerIndex != i {
			t.Fatalf("cycle %d: index = %d", i, snap.CurrentPlayerIndex)
		}

		if err := c.RevealRole(); err != nil {
			t.Fatalf("cycle %d: RevealRole: %v", i, err)
		}

		snap = c.Snapshot()
		if snap.Stage != StageRevealRole || snap.CurrentPlayerIndex != i {
			t.Fatalf("cycle %d: after reveal stage = %s index = %d", i, snap.Stage, snap.CurrentPlayerIndex)
		}
		if !snap.Players[i].HasSeenRole {
			t.Errorf("cycle %d: player has not been marked as having seen role", i)
		}

		if err := c.FinishTurn(); err != nil {
			t.Fatalf("cycle %d: FinishTurn: %v", i, err)
		}
	}

	if got := c.Stage(); got != StageGameStart {
		t.Errorf("stage = %s, want %s", got, StageGameStart)
	}
}

func Test_ThreePlayerScenario(t *testing.T) {
	c := NewController(fixedWord("Luna", "Naturaleza"), WithPlayerCount(3))

	if err := c.StartGame(context.Background()); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	snap := c.Snapshot()
	if len(snap.Players) != 3 {
		t.Fatalf("len(players) = %d, want 3", len(snap.Players))
	}

	for i := 0; i < 3; i++ {
		if err := c.RevealRole(); err != nil {
			t.Fatalf("RevealRole: %v", err)
		}
		if err := c.FinishTurn(); err != nil {
			t.Fatalf("FinishTurn: %v", err)
		}
	}

	if got := c.Stage(); got != StageGameStart {
		t.Errorf("stage = %s, want %s", got, StageGameStart)
	}
}

func Test_ResetAfterGameStart(t *testing.T) {
	c := NewController(fixedWord("Reloj", "Objetos"), WithPlayerCount(3))
	if err := c.SetPlayerCount(2); err != nil {
		t.Fatal(err)
	}

	if err := c.StartGame(context.Background()); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	for i := 0; i < 5; i++ {
		_ = c.RevealRole()
		_ = c.FinishTurn()
	}

	if err := c.ResetGame(); err != nil {
		t.Fatalf("ResetGame: %v", err)
	}

	snap := c.Snapshot()
	if snap.Stage != StageSetup {
		t.Errorf("stage = %s, want %s", snap.Stage, StageSetup)
	}
	if snap.PlayerCount != 5 {
		t.Errorf("player count = %d, want 5", snap.PlayerCount)
	}
	if len(snap.Players) != 0 || snap.SecretWord != nil || snap.CurrentPlayerIndex != 0 || snap.Error != "" {
		t.Errorf("session not cleared: %+v", snap)
	}
}

func Test_ProviderFailure(t *testing.T) {
	cause := errors.New("boom")
	c := NewController(failingProvider(cause), WithPlayerCount(6))

	err := c.StartGame(context.Background())
	if !errors.Is(err, ErrWordFetch) {
		t.Fatalf("err = %v, want ErrWordFetch", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("err = %v, want it to wrap the provider error", err)
	}

	snap := c.Snapshot()
	if snap.Stage != StageError {
		t.Fatalf("stage = %s, want %s", snap.Stage, StageError)
	}
	if snap.Error == "" {
		t.Error("error message is empty")
	}
	if snap.SecretWord != nil || len(snap.Players) != 0 {
		t.Errorf("error session carries round data: %+v", snap)
	}

	if err := c.ResetGame(); err != nil {
		t.Fatalf("ResetGame: %v", err)
	}

	snap = c.Snapshot()
	if snap.Stage != StageSetup || snap.PlayerCount != 6 || snap.Error != "" {
		t.Errorf("after reset: %+v", snap)
	}
}

func Test_EmptyWordIsFailure(t *testing.T) {
	c := NewController(fixedWord("  ", "Nada"))

	if err := c.StartGame(context.Background()); !errors.Is(err, ErrWordFetch) {
		t.Fatalf("err = %v, want ErrWordFetch", err)
	}
	if got := c.Stage(); got != StageError {
		t.Errorf("stage = %s, want %s", got, StageError)
	}
}

func Test_OperationsOutsideTheirStage(t *testing.T) {
	c := NewController(fixedWord("Pizza", "Comida"))

	for name, op := range map[string]func() error{
		"RevealRole": c.RevealRole,
		"FinishTurn": c.FinishTurn,
		"ResetGame":  c.ResetGame,
	} {
		if err := op(); !errors.Is(err, ErrInvalidStage) {
			t.Errorf("%s in SETUP: err = %v, want ErrInvalidStage", name, err)
		}
	}

	if err := c.StartGame(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := c.SetPlayerCount(1); !errors.Is(err, ErrInvalidStage) {
		t.Errorf("SetPlayerCount in PASS_DEVICE: err = %v", err)
	}
	if err := c.StartGame(context.Background()); !errors.Is(err, ErrInvalidStage) {
		t.Errorf("StartGame in PASS_DEVICE: err = %v", err)
	}
	if err := c.FinishTurn(); !errors.Is(err, ErrInvalidStage) {
		t.Errorf("FinishTurn in PASS_DEVICE: err = %v", err)
	}

	if got := c.Snapshot(); got.Stage != StagePassDevice || got.CurrentPlayerIndex != 0 || got.PlayerCount != DefaultPlayers {
		t.Errorf("rejected operations changed the session: %+v", got)
	}
}

func Test_StartGameRejectedWhileFetching(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	c := NewController(ProviderFunc(func(context.Context) (WordEntry, error) {
		close(entered)
		<-release
		return WordEntry{Word: "Cine", Category: "Lugares"}, nil
	}))

	var wg sync.WaitGroup
	var firstErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		firstErr = c.StartGame(context.Background())
	}()

	<-entered

	if got := c.Stage(); got != StageFetching {
		t.Errorf("stage = %s, want %s", got, StageFetching)
	}
	if err := c.StartGame(context.Background()); !errors.Is(err, ErrInvalidStage) {
		t.Errorf("second StartGame: err = %v, want ErrInvalidStage", err)
	}
	if err := c.ResetGame(); !errors.Is(err, ErrInvalidStage) {
		t.Errorf("ResetGame while fetching: err = %v, want ErrInvalidStage", err)
	}

	close(release)
	wg.Wait()

	if firstErr != nil {
		t.Fatalf("first StartGame: %v", firstErr)
	}
	if got := c.Stage(); got != StagePassDevice {
		t.Errorf("stage = %s, want %s", got, StagePassDevice)
	}
}

func Test_SnapshotIsACopy(t *testing.T) {
	c := NewController(fixedWord("Golf", "Deportes"), WithPicker(func(int) int { return 0 }))
	if err := c.StartGame(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap := c.Snapshot()
	snap.Players[0].IsImpostor = false
	snap.SecretWord.Word = "changed"

	again := c.Snapshot()
	if !again.Players[0].IsImpostor || again.SecretWord.Word != "Golf" {
		t.Errorf("snapshot mutation leaked into controller: %+v", again)
	}
}

func Test_CancelledFetchMovesToError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewController(NewCatalogProvider(DefaultCatalog(), time.Minute))

	if err := c.StartGame(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if got := c.Stage(); got != StageError {
		t.Errorf("stage = %s, want %s", got, StageError)
	}
}

func Test_CurrentPlayer(t *testing.T) {
	c := NewController(fixedWord("Taxi", "Transporte"), WithPlayerCount(3))

	if _, ok := c.CurrentPlayer(); ok {
		t.Error("CurrentPlayer in SETUP reported a player")
	}

	if err := c.StartGame(context.Background()); err != nil {
		t.Fatal(err)
	}
	_ = c.RevealRole()
	_ = c.FinishTurn()

	p, ok := c.CurrentPlayer()
	if !ok || p.ID != 2 {
		t.Errorf("CurrentPlayer = %+v, %v; want player 2", p, ok)
	}
}
