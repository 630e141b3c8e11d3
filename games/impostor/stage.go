/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package impostor

// Stage is the current phase of a game session.
type Stage string

const (
	StageSetup      Stage = "SETUP"
	StageFetching   Stage = "FETCHING"
	StagePassDevice Stage = "PASS_DEVICE"
	StageRevealRole Stage = "REVEAL_ROLE"
	StageGameStart  Stage = "GAME_START"
	StageError      Stage = "ERROR"
)

var transitions = map[Stage][]Stage{
	StageSetup:      {StageFetching},
	StageFetching:   {StagePassDevice, StageError},
	StagePassDevice: {StageRevealRole},
	StageRevealRole: {StagePassDevice, StageGameStart},
	StageGameStart:  {StageSetup},
	StageError:      {StageSetup},
}

func (s Stage) String() string {
	return string(s)
}

// CanTransitionTo reports whether the session may move from s to target.
func (s Stage) CanTransitionTo(target Stage) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}

	return false
}
