package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionAbove Direction = "ABOVE"
	DirectionBelow Direction = "BELOW"
)

func ParseDirection(input string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(input)) {
	case "ABOVE", ">=", ">":
		return DirectionAbove, nil
	case "BELOW", "<=", "<":
		return DirectionBelow, nil
	default:
		return "", fmt.Errorf("unknown direction %q", input)
	}
}

func (d Direction) Valid() bool {
	return d == DirectionAbove || d == DirectionBelow
}

// Crossed reports whether price satisfies the threshold. Both boundaries are
// inclusive: a price equal to the target counts as crossed.
func (d Direction) Crossed(price, target decimal.Decimal) bool {
	cmp := price.Cmp(target)
	switch d {
	case DirectionAbove:
		return cmp >= 0
	case DirectionBelow:
		return cmp <= 0
	default:
		return false
	}
}

type Alert struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	AssetID        string
	Direction      Direction
	TargetPrice    decimal.Decimal
	Triggered      bool
	TriggeredPrice *decimal.Decimal
	TriggeredAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Populated by reads that need the denormalized snapshot.
	Asset *Asset
	User  *User
}
