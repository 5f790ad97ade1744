package network

// Reserved codes bypass the 4-character and arity rules.
const (
	CodeOK   = "OK"
	CodeErr  = "ERR"
	CodeTest = "TEST"
)

// Session and administrative codes.
const (
	CodePing      = "PING"
	CodeExit      = "EXIT"
	CodeReconnect = "RCON"
	CodeSession   = "SESS"
	CodeRegister  = "RGST"
	CodeRename    = "CHAN"
	CodeCreate    = "CREA"
	CodeJoin      = "JOIN"
	CodeLeave     = "LEAV"
	CodeStart     = "STRT"
	CodeList      = "LIST"
	CodeListPlrs  = "LSTP"
	CodeChatAll   = "CHTG"
	CodeChatLobby = "CHTL"
	CodeChatPriv  = "CHTP"
	CodeShutdown  = "STDN"
)

// Game action and query codes.
const (
	CodeBuyTile        = "BTIL"
	CodePlaceStructure = "PSTR"
	CodeUseStructure   = "USTR"
	CodePlaceStatue    = "PSTA"
	CodeUpgradeStatue  = "UPST"
	CodeUseStatue      = "USTA"
	CodeUseFieldArt    = "UFAR"
	CodeUsePlayerArt   = "UPAR"
	CodeEndTurn        = "ENDT"
	CodeGetTile        = "GTIL"
	CodeGetPlayer      = "GPLR"
)

// Server-to-client notification codes.
const (
	CodeGameStarted  = "GSTR"
	CodeTurn         = "TURN"
	CodeGameEnded    = "GEND"
	CodeResources    = "PRES"
	CodeUpdate       = "UPDT"
	CodeTileInfo     = "TINF"
	CodePlayerInfo   = "PINF"
	CodeLobbies      = "LOBS"
	CodePlayers      = "PLRS"
	CodeDisconnected = "DISC"
)

// Sub-modes of the variadic LSTP family.
const (
	ListModeServer = "SERVER"
	ListModeLobby  = "LOBBY"
	ListModeGame   = "GAME"
)

// arity is the exact argument count per enumerated code.
var arity = map[string]int{
	CodePing:      0,
	CodeExit:      0,
	CodeReconnect: 1,
	CodeSession:   1,
	CodeRegister:  1,
	CodeRename:    1,
	CodeCreate:    2,
	CodeJoin:      2,
	CodeLeave:     1,
	CodeStart:     0,
	CodeList:      0,
	CodeChatAll:   2,
	CodeChatLobby: 2,
	CodeChatPriv:  3,
	CodeShutdown:  0,

	CodeBuyTile:        2,
	CodePlaceStructure: 3,
	CodeUseStructure:   2,
	CodePlaceStatue:    3,
	CodeUpgradeStatue:  2,
	CodeUseStatue:      3,
	CodeUseFieldArt:    3,
	CodeUsePlayerArt:   2,
	CodeEndTurn:        0,
	CodeGetTile:        2,
	CodeGetPlayer:      1,

	CodeGameStarted:  1,
	CodeTurn:         2,
	CodeGameEnded:    1,
	CodeResources:    3,
	CodeUpdate:       3,
	CodeTileInfo:     3,
	CodePlayerInfo:   2,
	CodeLobbies:      1,
	CodePlayers:      1,
	CodeDisconnected: 1,
}

// variadic codes pick their arity from the first argument.
var variadic = map[string]map[string]int{
	CodeListPlrs: {
		ListModeServer: 1,
		ListModeGame:   1,
		ListModeLobby:  2,
	},
}

// Known reports whether code belongs to the closed enumeration (reserved codes included).
func Known(code string) bool {
	if isReserved(code) {
		return true
	}
	if _, ok := arity[code]; ok {
		return true
	}
	_, ok := variadic[code]
	return ok
}

// Arity returns the expected argument count for code given its arguments. The second
// result is false when the code or the variadic sub-mode is unknown.
func Arity(code string, args []string) (int, bool) {
	if n, ok := arity[code]; ok {
		return n, true
	}
	modes, ok := variadic[code]
	if !ok || len(args) == 0 {
		return 0, false
	}
	n, ok := modes[args[0]]
	return n, ok
}

func isReserved(code string) bool {
	return code == CodeOK || code == CodeErr || code == CodeTest
}
