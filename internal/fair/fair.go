package fair

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"math/big"
)

// Intn returns a uniform int in [0, n) from crypto/rand.
func Intn(n int) int {
	if n <= 0 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand failing means the process is unusable anyway
		panic(err)
	}
	return int(v.Int64())
}

// Shuffle performs a CSPRNG-driven Fisher-Yates shuffle in place.
func Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := Intn(i + 1)
		swap(i, j)
	}
}

// SampleWithoutReplacement picks k distinct values from [0, n).
func SampleWithoutReplacement(n, k int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	return idx[:k]
}

// MinesMultiplier returns the payout multiplier after revealed safe reveals on
// a board of cells with mines. It is the inverse hypergeometric probability of
// drawing that many safe cells in a row, reduced by the house edge, computed
// as a running product of falling factorials so no factorial ever overflows.
// With zero reveals the multiplier is exactly 1.
func MinesMultiplier(cells, mines, revealed int, edge float64) float64 {
	if revealed <= 0 {
		return 1.0
	}
	safe := cells - mines
	if revealed > safe {
		revealed = safe
	}
	m := 1.0
	for i := 0; i < revealed; i++ {
		m *= float64(cells-i) / float64(safe-i)
	}
	return m * (1 - edge)
}

// NewSeed returns a fresh 32-byte hex server seed.
func NewSeed() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// Commitment is the one-way hash published before a round starts. Clients
// verify it against the revealed seed after the crash.
func Commitment(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:])
}

// CrashPoint derives the round's crash multiplier deterministically from the
// server seed: a uniform draw mapped through a heavy-tailed inverse so the
// expected payout carries the fixed house edge. Truncated to 2 decimals,
// never below 1.00.
func CrashPoint(seed string, edge float64) float64 {
	h := sha256.Sum256([]byte("point:" + seed))
	u := float64(binary.BigEndian.Uint64(h[:8])) / float64(math.MaxUint64)
	if u >= 1 {
		u = math.Nextafter(1, 0)
	}
	m := (1 - edge) / (1 - u)
	if m < 1 {
		m = 1
	}
	return math.Floor(m*100) / 100
}

// CrashMultiplierAt is the displayed multiplier as a deterministic, strictly
// increasing function of seconds elapsed since the round started flying.
func CrashMultiplierAt(elapsedSeconds, growthRate float64) float64 {
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}
	return math.Floor(math.Exp(growthRate*elapsedSeconds)*100) / 100
}

// FlightDuration inverts CrashMultiplierAt: seconds until the displayed
// multiplier reaches the given crash point.
func FlightDuration(crashPoint, growthRate float64) float64 {
	if crashPoint <= 1 {
		return 0
	}
	return math.Log(crashPoint) / growthRate
}
