// Package puzzle builds word-search letter grids and validates found words.
package puzzle

import (
	"math/rand/v2"
	"strings"
	"unicode"
)

const (
	// MaxPlacementAttempts bounds the random placement tries per word.
	MaxPlacementAttempts = 100

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

type Direction struct {
	DRow int `json:"d_row"`
	DCol int `json:"d_col"`
}

var (
	East      = Direction{DRow: 0, DCol: 1}
	West      = Direction{DRow: 0, DCol: -1}
	South     = Direction{DRow: 1, DCol: 0}
	North     = Direction{DRow: -1, DCol: 0}
	SouthEast = Direction{DRow: 1, DCol: 1}
	NorthWest = Direction{DRow: -1, DCol: -1}
	SouthWest = Direction{DRow: 1, DCol: -1}
	NorthEast = Direction{DRow: -1, DCol: 1}
)

// Directions lists the eight placement directions.
var Directions = []Direction{East, West, South, North, SouthEast, NorthWest, SouthWest, NorthEast}

type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Placement records where a word was written.
type Placement struct {
	Word      string    `json:"word"`
	Start     Position  `json:"start"`
	Direction Direction `json:"direction"`
}

// Cells returns the positions covered by the placement, in reading order.
func (p Placement) Cells() []Position {
	n := len([]rune(p.Word))
	cells := make([]Position, n)
	for i := 0; i < n; i++ {
		cells[i] = Position{
			Row: p.Start.Row + p.Direction.DRow*i,
			Col: p.Start.Col + p.Direction.DCol*i,
		}
	}
	return cells
}

// Grid is a square letter matrix. Placements are the answer key and never
// leave the server.
type Grid struct {
	Size       int         `json:"size"`
	Cells      [][]string  `json:"cells"`
	Placements []Placement `json:"-"`
}

// Words returns the words that were actually placed, in placement order.
func (g *Grid) Words() []string {
	words := make([]string, len(g.Placements))
	for i, p := range g.Placements {
		words[i] = p.Word
	}
	return words
}

func (g *Grid) IsPlaced(word string) bool {
	for _, p := range g.Placements {
		if p.Word == word {
			return true
		}
	}
	return false
}

// Read returns the letters found along the placement's path.
func (g *Grid) Read(p Placement) string {
	var b strings.Builder
	for _, pos := range p.Cells() {
		if !g.inBounds(pos) {
			return ""
		}
		b.WriteString(g.Cells[pos.Row][pos.Col])
	}
	return b.String()
}

func (g *Grid) Clone() *Grid {
	cells := make([][]string, len(g.Cells))
	for i, row := range g.Cells {
		cells[i] = append([]string(nil), row...)
	}
	return &Grid{
		Size:       g.Size,
		Cells:      cells,
		Placements: append([]Placement(nil), g.Placements...),
	}
}

func (g *Grid) inBounds(p Position) bool {
	return p.Row >= 0 && p.Row < g.Size && p.Col >= 0 && p.Col < g.Size
}

func (g *Grid) fits(letters []rune, start Position, dir Direction) bool {
	for i, letter := range letters {
		pos := Position{Row: start.Row + dir.DRow*i, Col: start.Col + dir.DCol*i}
		if !g.inBounds(pos) {
			return false
		}
		cell := g.Cells[pos.Row][pos.Col]
		if cell != "" && cell != string(letter) {
			return false
		}
	}
	return true
}

func (g *Grid) write(letters []rune, start Position, dir Direction) {
	for i, letter := range letters {
		g.Cells[start.Row+dir.DRow*i][start.Col+dir.DCol*i] = string(letter)
	}
}

// NormalizeWord upper-cases w and removes every whitespace rune.
func NormalizeWord(w string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, w)
	return strings.ToUpper(stripped)
}

// NormalizeWords normalizes and de-duplicates a word list, dropping empty entries.
func NormalizeWords(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		n := NormalizeWord(w)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

type Generator struct {
	intN func(n int) int
}

// NewGenerator returns a generator drawing from r, or from the global source when r is nil.
func NewGenerator(r *rand.Rand) *Generator {
	if r == nil {
		return &Generator{intN: rand.IntN}
	}
	return &Generator{intN: r.IntN}
}

// Generate places every word that fits and fills the remaining cells with
// random letters. Words longer than size, or that could not be placed within
// MaxPlacementAttempts, are left out of Placements.
func (gen *Generator) Generate(words []string, size int) *Grid {
	if size < 1 {
		size = 1
	}
	grid := &Grid{Size: size, Cells: make([][]string, size)}
	for i := range grid.Cells {
		grid.Cells[i] = make([]string, size)
	}

	for _, word := range NormalizeWords(words) {
		letters := []rune(word)
		if len(letters) > size {
			continue
		}
		for attempt := 0; attempt < MaxPlacementAttempts; attempt++ {
			dir := Directions[gen.intN(len(Directions))]
			start := Position{Row: gen.intN(size), Col: gen.intN(size)}
			if !grid.fits(letters, start, dir) {
				continue
			}
			grid.write(letters, start, dir)
			grid.Placements = append(grid.Placements, Placement{Word: word, Start: start, Direction: dir})
			break
		}
	}

	for r := range grid.Cells {
		for c := range grid.Cells[r] {
			if grid.Cells[r][c] == "" {
				grid.Cells[r][c] = string(alphabet[gen.intN(len(alphabet))])
			}
		}
	}

	return grid
}
