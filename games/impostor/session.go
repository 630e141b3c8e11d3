/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package impostor

const (
	MinPlayers     = 3
	MaxPlayers     = 12
	DefaultPlayers = 4
)

// FetchErrorMessage is shown to the group when no secret word could be drawn.
const FetchErrorMessage = "Error al iniciar el juego. Por favor intenta de nuevo."

// Player is one seat at the table. IDs are 1-based and stable for a round.
type Player struct {
	ID          int  `json:"id"`
	IsImpostor  bool `json:"is_impostor"`
	HasSeenRole bool `json:"has_seen_role"`
}

// WordEntry is a secret word together with the category hint shown to
// everyone except the impostor.
type WordEntry struct {
	Word     string `json:"word"`
	Category string `json:"category"`
}

// Snapshot is a read-only copy of a session, handed to whatever renders it.
type Snapshot struct {
	Stage              Stage      `json:"stage"`
	PlayerCount        int        `json:"player_count"`
	Players            []Player   `json:"players"`
	CurrentPlayerIndex int        `json:"current_player_index"`
	SecretWord         *WordEntry `json:"secret_word,omitempty"`
	Error              string     `json:"error,omitempty"`
}

// CurrentPlayer returns the player holding the device, if a round is running.
func (s Snapshot) CurrentPlayer() (Player, bool) {
	if s.CurrentPlayerIndex < 0 || s.CurrentPlayerIndex >= len(s.Players) {
		return Player{}, false
	}

	return s.Players[s.CurrentPlayerIndex], true
}

// round is the payload shared by every stage that follows a successful draw.
type round struct {
	players []Player
	word    WordEntry
}

// state is implemented by one type per stage, so that each stage only carries
// the fields that are meaningful for it.
type state interface {
	stage() Stage
}

type setupState struct{}

type fetchingState struct{}

type passDeviceState struct {
	round *round
	index int
}

type revealRoleState struct {
	round *round
	index int
}

type gameStartState struct {
	round *round
}

type errorState struct {
	message string
}

func (setupState) stage() Stage      { return StageSetup }
func (fetchingState) stage() Stage   { return StageFetching }
func (passDeviceState) stage() Stage { return StagePassDevice }
func (revealRoleState) stage() Stage { return StageRevealRole }
func (gameStartState) stage() Stage  { return StageGameStart }
func (errorState) stage() Stage      { return StageError }

func clampPlayers(n int) int {
	return max(MinPlayers, min(MaxPlayers, n))
}

func newRound(n, impostor int, word WordEntry) *round {
	players := make([]Player, n)
	for i := range players {
		players[i] = Player{
			ID:         i + 1,
			IsImpostor: i == impostor,
		}
	}

	return &round{
		players: players,
		word:    word,
	}
}

func snapshotOf(st state, playerCount int) Snapshot {
	snap := Snapshot{
		Stage:       st.stage(),
		PlayerCount: playerCount,
	}

	var r *round

	switch s := st.(type) {
	case passDeviceState:
		r, snap.CurrentPlayerIndex = s.round, s.index
	case revealRoleState:
		r, snap.CurrentPlayerIndex = s.round, s.index
	case gameStartState:
		r, snap.CurrentPlayerIndex = s.round, len(s.round.players)-1
	case errorState:
		snap.Error = s.message
	}

	if r != nil {
		snap.Players = append([]Player(nil), r.players...)
		word := r.word
		snap.SecretWord = &word
	}

	return snap
}
