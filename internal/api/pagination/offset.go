package pagination

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 100
	MaxLimit     = 100
)

// Offset is a skip/limit window over an ordered listing.
type Offset struct {
	Skip  int
	Limit int
}

// Params names the query parameters and bounds of a listing endpoint.
type Params struct {
	SkipParam    string
	LimitParam   string
	DefaultLimit int
	MaxLimit     int
}

// Standard is used by the events and announcements listings.
var Standard = Params{SkipParam: "skip", LimitParam: "limit", DefaultLimit: DefaultLimit, MaxLimit: MaxLimit}

type Error struct {
	Field   string
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Parse reads the window from values. Missing parameters take their
// defaults; out-of-range values are rejected rather than clamped.
func Parse(values url.Values, params Params) (Offset, error) {
	offset := Offset{Limit: params.DefaultLimit}

	if raw := strings.TrimSpace(values.Get(params.SkipParam)); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return offset, Error{Field: params.SkipParam, Message: "must be a non-negative integer"}
		}
		offset.Skip = skip
	}

	if raw := strings.TrimSpace(values.Get(params.LimitParam)); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > params.MaxLimit {
			return offset, Error{Field: params.LimitParam, Message: fmt.Sprintf("must be between 1 and %d", params.MaxLimit)}
		}
		offset.Limit = limit
	}

	return offset, nil
}
