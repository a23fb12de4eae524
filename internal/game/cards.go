package game

import (
	"github.com/playmatrix/backend/internal/fair"
)

// Suit represents a card suit
type Suit string

const (
	Hearts   Suit = "H"
	Diamonds Suit = "D"
	Clubs    Suit = "C"
	Spades   Suit = "S"
)

// Rank represents a card rank
type Rank string

const (
	Two   Rank = "2"
	Three Rank = "3"
	Four  Rank = "4"
	Five  Rank = "5"
	Six   Rank = "6"
	Seven Rank = "7"
	Eight Rank = "8"
	Nine  Rank = "9"
	Ten   Rank = "10"
	Jack  Rank = "J"
	Queen Rank = "Q"
	King  Rank = "K"
	Ace   Rank = "A"
)

var suits = []Suit{Hearts, Diamonds, Clubs, Spades}
var ranks = []Rank{Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King, Ace}

// Card represents a playing card
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

// String returns a compact representation (e.g. "AS" for Ace of Spades).
func (c Card) String() string {
	return string(c.Rank) + string(c.Suit)
}

// BlackjackValue returns the card's base blackjack value. Aces count 11 here;
// demotion to 1 is the hand total's job.
func (c Card) BlackjackValue() int {
	switch c.Rank {
	case Ace:
		return 11
	case Ten, Jack, Queen, King:
		return 10
	case Nine:
		return 9
	case Eight:
		return 8
	case Seven:
		return 7
	case Six:
		return 6
	case Five:
		return 5
	case Four:
		return 4
	case Three:
		return 3
	default:
		return 2
	}
}

// PistiPoints returns the card's face point value in the trick-capture game.
// Diamond ten is worth 3, club two is worth 2, aces and jacks 1, the rest 0.
func (c Card) PistiPoints() int {
	if c.Rank == Ten && c.Suit == Diamonds {
		return 3
	}
	if c.Rank == Two && c.Suit == Clubs {
		return 2
	}
	if c.Rank == Ace || c.Rank == Jack {
		return 1
	}
	return 0
}

// NewShoe builds decks concatenated standard 52-card decks, CSPRNG-shuffled.
func NewShoe(decks int) []Card {
	if decks < 1 {
		decks = 1
	}
	cards := make([]Card, 0, decks*52)
	for d := 0; d < decks; d++ {
		for _, s := range suits {
			for _, r := range ranks {
				cards = append(cards, Card{Suit: s, Rank: r})
			}
		}
	}
	fair.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
	return cards
}

// draw pops the top card. Callers check emptiness via the returned ok.
func draw(deck []Card) (Card, []Card, bool) {
	if len(deck) == 0 {
		return Card{}, deck, false
	}
	return deck[len(deck)-1], deck[:len(deck)-1], true
}
