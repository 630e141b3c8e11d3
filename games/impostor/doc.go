/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package impostor implements the "find the impostor" pass-the-device game.
//
// One device is handed around the table. Each player in turn taps to reveal
// their role: everybody sees the same secret word and its category, except
// one randomly chosen impostor who only learns that they are the impostor.
// Once all players have looked, the group takes turns giving clues, starting
// with player 1, and tries to unmask the impostor before they guess the word.
//
// Flow:
//
//	SETUP -> FETCHING -> PASS_DEVICE <-> REVEAL_ROLE -> GAME_START -> SETUP
//	            \-> ERROR -> SETUP
package impostor
