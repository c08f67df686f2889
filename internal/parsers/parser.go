package parsers

import (
	"github.com/austin-smith/fusion-bridge-sub012/internal/model"
)

// Parser turns one raw vendor payload into zero or more StandardizedEvents.
//
// Implementations are pure and safe for concurrent use. They never return an
// error: a payload missing essential fields yields an empty slice (logged at
// warning level), and an unrecognized action code degrades to an
// UNKNOWN_EXTERNAL_EVENT rather than being dropped.
type Parser interface {
	Category() model.ConnectorCategory
	Parse(connectorID string, raw []byte) []model.StandardizedEvent
}
