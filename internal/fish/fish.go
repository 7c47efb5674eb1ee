// Package fish defines the bot's virtual currency tariffs.
package fish

import "fmt"

// ThreeCardsCost is the price of a three-card reading.
const ThreeCardsCost = 70

// Tariff is a top-up option.
type Tariff struct {
	Rub   int
	Fish  int
	Bonus int
}

// Label is the button text for the tariff.
func (t Tariff) Label() string {
	if t.Bonus > 0 {
		return fmt.Sprintf("%d ₽ → %d 🐟 (+%d бонус)", t.Rub, t.Fish, t.Bonus)
	}
	return fmt.Sprintf("%d ₽ → %d 🐟", t.Rub, t.Fish)
}

// Tariffs lists the top-up options in ascending price.
var Tariffs = []Tariff{
	{Rub: 50, Fish: 350},
	{Rub: 150, Fish: 1050, Bonus: 150},
	{Rub: 300, Fish: 2100, Bonus: 400},
	{Rub: 650, Fish: 4550, Bonus: 1000},
}

// ByRub finds a tariff by its ruble price.
func ByRub(rub int) (Tariff, bool) {
	for _, t := range Tariffs {
		if t.Rub == rub {
			return t, true
		}
	}
	return Tariff{}, false
}
