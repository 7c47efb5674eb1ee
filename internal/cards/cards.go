package cards

import (
	"embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
)

// DefaultImageBase is where card images are served from.
const DefaultImageBase = "https://raw.githubusercontent.com/netebla/Milky_Tarot/main/src/data/images"

//go:embed data/*.csv
var builtin embed.FS

// Built-in deck files
const (
	DeckMain     = "data/cards.csv"
	DeckAdvice   = "data/advice.csv"
	DeckMeanings = "data/meanings.csv"
)

// ErrEmptyDeck is returned when a CSV holds no usable rows.
var ErrEmptyDeck = errors.New("cards: no valid title;description rows")

// Card is a single tarot card
type Card struct {
	Title       string
	Description string
}

// ImageURL returns the card image under base.
func (c Card) ImageURL(base string) string {
	if base == "" {
		base = DefaultImageBase
	}
	name := strings.ReplaceAll(strings.TrimSpace(c.Title), " ", "_")
	return strings.TrimRight(base, "/") + "/" + name + ".jpg"
}

// Deck is an immutable set of cards
type Deck struct {
	cards   []Card
	byTitle map[string]Card
	intn    func(n int) int
}

// Parse reads "title;description" rows. Short and blank rows are skipped.
func Parse(r io.Reader) (*Deck, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var list []Card
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading cards csv: %w", err)
		}
		if len(row) < 2 {
			continue
		}
		title := strings.TrimSpace(strings.TrimPrefix(row[0], "\ufeff"))
		desc := strings.TrimSpace(row[1])
		if title == "" || desc == "" {
			continue
		}
		list = append(list, Card{Title: title, Description: desc})
	}
	return NewDeck(list)
}

// NewDeck builds a deck from cards.
func NewDeck(list []Card) (*Deck, error) {
	if len(list) == 0 {
		return nil, ErrEmptyDeck
	}
	d := &Deck{
		cards:   list,
		byTitle: make(map[string]Card, len(list)),
		intn:    rand.Intn,
	}
	for _, c := range list {
		d.byTitle[c.Title] = c
	}
	return d, nil
}

// Load reads a deck from path, or from the built-in file of the same name when path is empty.
func Load(path, builtinName string) (*Deck, error) {
	var (
		f   io.ReadCloser
		err error
	)
	if path != "" {
		f, err = os.Open(path)
	} else {
		f, err = builtin.Open(builtinName)
	}
	if err != nil {
		return nil, fmt.Errorf("opening deck: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Len returns the number of cards.
func (d *Deck) Len() int {
	return len(d.cards)
}

// Cards returns a copy of the deck's cards.
func (d *Deck) Cards() []Card {
	return append([]Card(nil), d.cards...)
}

// Random picks one card.
func (d *Deck) Random() Card {
	return d.cards[d.intn(len(d.cards))]
}

// Draw picks n distinct cards. n is capped at the deck size.
func (d *Deck) Draw(n int) []Card {
	if n > len(d.cards) {
		n = len(d.cards)
	}
	idx := make([]int, len(d.cards))
	for i := range idx {
		idx[i] = i
	}
	out := make([]Card, 0, n)
	for i := 0; i < n; i++ {
		j := i + d.intn(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
		out = append(out, d.cards[idx[i]])
	}
	return out
}

// Find looks a card up by title.
func (d *Deck) Find(title string) (Card, bool) {
	c, ok := d.byTitle[strings.TrimSpace(title)]
	return c, ok
}

// Meanings maps a card title to its extended meaning.
type Meanings map[string]string

// LoadMeanings reads "title;meaning" rows.
func LoadMeanings(path string) (Meanings, error) {
	d, err := Load(path, DeckMeanings)
	if err != nil {
		return nil, err
	}
	m := make(Meanings, d.Len())
	for _, c := range d.cards {
		m[c.Title] = c.Description
	}
	return m, nil
}
