package vehicle

import (
	"math"
	"time"
)

// Path builds the Manhattan route from start to end: the x-steps along
// start.Y, then the y-steps along end.X, then the end cell itself.
// The result always has |dx|+|dy|+1 cells.
func Path(start, end Position) []Position {
	path := make([]Position, 0, ManhattanDistance(start, end)+1)

	x, y := start.X, start.Y
	for x != end.X {
		path = append(path, Position{X: x, Y: y})
		x += step(x, end.X)
	}
	for y != end.Y {
		path = append(path, Position{X: x, Y: y})
		y += step(y, end.Y)
	}
	return append(path, end)
}

func step(from, to int) int {
	if to > from {
		return 1
	}
	return -1
}

// ManhattanDistance calculates the Manhattan distance between two positions
func ManhattanDistance(from, to Position) int {
	dx := from.X - to.X
	if dx < 0 {
		dx = -dx
	}
	dy := from.Y - to.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// CellBudget splits a trip of durationSeconds evenly across the path cells.
// It returns false for an empty path, in which case the budget is zero.
func CellBudget(durationSeconds float64, path []Position) (time.Duration, bool) {
	if len(path) == 0 {
		return 0, false
	}
	perCell := durationSeconds / float64(len(path))
	return time.Duration(math.Round(perCell * float64(time.Second))), true
}
