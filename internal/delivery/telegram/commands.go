package telegram

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const HelpText = `Commands:
/start - register
/help - show this help
/assets - tracked assets and latest prices
/alerts - list your alerts
/triggered - alerts that already fired
/add <asset_id> <above|below> <price>
/edit <alert_id> <above|below> <price>
/delete <alert_id>

Notes:
- An alert fires once, when the price reaches the target (inclusive).
- Use >= or > as aliases for above, and <= or < for below.
Example:
/add bitcoin above 100000
`

var ErrInvalidArguments = errors.New("invalid arguments")

// ParseThresholdArgs splits "<subject> <direction> <price>", where subject is
// an asset id for /add and an alert id for /edit.
func ParseThresholdArgs(args string) (subject, direction, price string, err error) {
	parts := strings.Fields(args)
	if len(parts) != 3 {
		return "", "", "", ErrInvalidArguments
	}
	return parts[0], parts[1], parts[2], nil
}

func ParseAlertID(args string) (uuid.UUID, error) {
	idStr := strings.TrimSpace(args)
	if idStr == "" {
		return uuid.Nil, ErrInvalidArguments
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, ErrInvalidArguments
	}
	return id, nil
}
