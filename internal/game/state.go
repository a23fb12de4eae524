package game

// Kind identifies a game variant.
type Kind string

const (
	KindBlackjack Kind = "blackjack"
	KindMines     Kind = "mines"
	KindCrash     Kind = "crash"
	KindConquest  Kind = "conquest"
	KindPisti     Kind = "pisti"
)

// State is a session's lifecycle phase. BETTING is the implicit idle phase
// with no record; a session row exists only from PLAYING onward. Transitions
// are strictly forward: PLAYING -> RESOLVING -> FINISHED -> deleted.
type State string

const (
	StatePlaying   State = "PLAYING"
	StateResolving State = "RESOLVING"
	StateFinished  State = "FINISHED"
)

// Room statuses, matching the two-party lifecycle: created waiting, playing
// once full, finished on a terminal condition, terminated on mid-play
// disconnect.
const (
	RoomWaiting    = "waiting"
	RoomPlaying    = "playing"
	RoomFinished   = "finished"
	RoomTerminated = "terminated"
)
