package search

import (
	"strconv"
	"strings"

	"direct-chat/domain"
)

const defaultLimit = 10

// Query represents the structured parameters of a message search.
// It decouples the raw client input from the index engine requirements.
type Query struct {
	RawInput string
	Terms    string
	RoomKey  domain.RoomKey
	Limit    int
}

// NewQuery parses a raw string to extract command-line style arguments.
// Example: /find invoice --room alice_bob --limit 5
func NewQuery(input string) *Query {
	query := &Query{
		RawInput: input,
		Limit:    defaultLimit,
	}

	parts := strings.Fields(input)
	var textTerms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			key := strings.TrimPrefix(part, "--")
			val := parts[i+1]

			switch key {
			case "room":
				query.RoomKey = domain.RoomKey(val)
			case "limit":
				if limit, err := strconv.Atoi(val); err == nil && limit > 0 {
					query.Limit = limit
				}
			}
			i++ // skip the consumed value
			continue
		}

		if !strings.HasPrefix(part, "/") {
			textTerms = append(textTerms, part)
		}
	}

	query.Terms = strings.Join(textTerms, " ")
	return query
}
