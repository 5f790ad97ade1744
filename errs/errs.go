// Package errs holds the error taxonomy shared by the session, lobby and game layers.
// Every rejected command is reported to the client as ERR$<code>$<REASON>[$detail].
package errs

import (
	"errors"
	"strconv"
)

// Code is the numeric error code sent on the wire.
type Code int

const (
	CodeInvalidCommand Code = 100
	CodeNotRegistered  Code = 101
	CodeNameMismatch   Code = 102
	CodeInvalidName    Code = 103
	CodeUnknownSession Code = 104

	CodeLobbyNotFound   Code = 200
	CodeLobbyFull       Code = 201
	CodeLobbyExists     Code = 202
	CodeNotInLobby      Code = 203
	CodeAlreadyInLobby  Code = 204
	CodeNotInGame       Code = 205
	CodeLobbyNotReady   Code = 206
	CodeGameStarted     Code = 207
	CodeInvalidCapacity Code = 208

	CodeNotYourTurn         Code = 300
	CodeInsufficientRunes   Code = 301
	CodeTileNotFound        Code = 302
	CodeTilePurchased       Code = 303
	CodeTileNotOwned        Code = 304
	CodeTileOccupied        Code = 305
	CodeEntityNotFound      Code = 306
	CodeMaxLevel            Code = 307
	CodeArtifactNotOwned    Code = 308
	CodeTargetNotFound      Code = 309
	CodeEffectFailed        Code = 310
	CodeStatueAlreadyPlaced Code = 311
	CodeInvalidParameters   Code = 312
	CodeGameOver            Code = 313
	CodeInsufficientEnergy  Code = 314
	CodeEntityNotOwned      Code = 315

	CodePlayerNotFound Code = 400
	CodeRateLimited    Code = 500
	CodeInternal       Code = 999
)

var reasons = map[Code]string{
	CodeInvalidCommand: "INVALID_COMMAND",
	CodeNotRegistered:  "NOT_REGISTERED",
	CodeNameMismatch:   "NAME_MISMATCH",
	CodeInvalidName:    "INVALID_NAME",
	CodeUnknownSession: "UNKNOWN_SESSION",

	CodeLobbyNotFound:   "LOBBY_NOT_FOUND",
	CodeLobbyFull:       "LOBBY_FULL",
	CodeLobbyExists:     "LOBBY_EXISTS",
	CodeNotInLobby:      "NOT_IN_LOBBY",
	CodeAlreadyInLobby:  "ALREADY_IN_LOBBY",
	CodeNotInGame:       "NOT_IN_GAME",
	CodeLobbyNotReady:   "LOBBY_NOT_READY",
	CodeGameStarted:     "GAME_ALREADY_STARTED",
	CodeInvalidCapacity: "INVALID_CAPACITY",

	CodeNotYourTurn:         "NOT_YOUR_TURN",
	CodeInsufficientRunes:   "INSUFFICIENT_RUNES",
	CodeTileNotFound:        "TILE_NOT_FOUND",
	CodeTilePurchased:       "TILE_ALREADY_PURCHASED",
	CodeTileNotOwned:        "TILE_NOT_OWNED",
	CodeTileOccupied:        "TILE_OCCUPIED",
	CodeEntityNotFound:      "ENTITY_NOT_FOUND",
	CodeMaxLevel:            "MAX_LEVEL",
	CodeArtifactNotOwned:    "ARTIFACT_NOT_OWNED",
	CodeTargetNotFound:      "TARGET_NOT_FOUND",
	CodeEffectFailed:        "EFFECT_FAILED",
	CodeStatueAlreadyPlaced: "STATUE_ALREADY_PLACED",
	CodeInvalidParameters:   "INVALID_PARAMETERS",
	CodeGameOver:            "GAME_OVER",
	CodeInsufficientEnergy:  "INSUFFICIENT_ENERGY",
	CodeEntityNotOwned:      "ENTITY_NOT_OWNED",

	CodePlayerNotFound: "PLAYER_NOT_FOUND",
	CodeRateLimited:    "RATE_LIMITED",
	CodeInternal:       "INTERNAL",
}

// Reason returns the upper-case wire reason for c.
func (c Code) Reason() string {
	if r, ok := reasons[c]; ok {
		return r
	}
	return reasons[CodeInternal]
}

// String returns the numeric form used on the wire.
func (c Code) String() string {
	return strconv.Itoa(int(c))
}

// Error is the domain error type carried through handlers back to the session.
type Error struct {
	Code   Code
	Detail string
	Cause  error
}

func New(code Code) *Error {
	return &Error{Code: code}
}

// Wrap attaches an underlying cause to a coded error.
func Wrap(code Code, cause error) *Error {
	return &Error{Code: code, Cause: cause}
}

func (e *Error) Error() string {
	msg := e.Code.Reason()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code, so sentinels compare through errors.Is
// even after WithDetail copies them.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail returns a copy of err carrying a human-readable detail.
func WithDetail(err *Error, detail string) *Error {
	return &Error{Code: err.Code, Detail: detail, Cause: err.Cause}
}

// CodeOf extracts the wire code from err. Errors outside the taxonomy map to INTERNAL.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// DetailOf returns the detail string attached to err, if any.
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return ""
}

var (
	ErrInvalidCommand = New(CodeInvalidCommand)
	ErrNotRegistered  = New(CodeNotRegistered)
	ErrNameMismatch   = New(CodeNameMismatch)
	ErrInvalidName    = New(CodeInvalidName)
	ErrUnknownSession = New(CodeUnknownSession)

	ErrLobbyNotFound   = New(CodeLobbyNotFound)
	ErrLobbyFull       = New(CodeLobbyFull)
	ErrLobbyExists     = New(CodeLobbyExists)
	ErrNotInLobby      = New(CodeNotInLobby)
	ErrAlreadyInLobby  = New(CodeAlreadyInLobby)
	ErrNotInGame       = New(CodeNotInGame)
	ErrLobbyNotReady   = New(CodeLobbyNotReady)
	ErrGameStarted     = New(CodeGameStarted)
	ErrInvalidCapacity = New(CodeInvalidCapacity)

	ErrNotYourTurn         = New(CodeNotYourTurn)
	ErrInsufficientRunes   = New(CodeInsufficientRunes)
	ErrTileNotFound        = New(CodeTileNotFound)
	ErrTilePurchased       = New(CodeTilePurchased)
	ErrTileNotOwned        = New(CodeTileNotOwned)
	ErrTileOccupied        = New(CodeTileOccupied)
	ErrEntityNotFound      = New(CodeEntityNotFound)
	ErrMaxLevel            = New(CodeMaxLevel)
	ErrArtifactNotOwned    = New(CodeArtifactNotOwned)
	ErrTargetNotFound      = New(CodeTargetNotFound)
	ErrEffectFailed        = New(CodeEffectFailed)
	ErrStatueAlreadyPlaced = New(CodeStatueAlreadyPlaced)
	ErrInvalidParameters   = New(CodeInvalidParameters)
	ErrGameOver            = New(CodeGameOver)
	ErrInsufficientEnergy  = New(CodeInsufficientEnergy)
	ErrEntityNotOwned      = New(CodeEntityNotOwned)

	ErrPlayerNotFound = New(CodePlayerNotFound)
	ErrRateLimited    = New(CodeRateLimited)
	ErrInternal       = New(CodeInternal)
)
