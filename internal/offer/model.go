package offer

import "encoding/json"

// Offer is the projected form of one star-offer record. Values are carried as
// raw JSON so numbers, strings and image arrays come out exactly as the feed sent them.
type Offer struct {
	NID         json.RawMessage `json:"nid"`
	Title       json.RawMessage `json:"title"`
	Teaser      json.RawMessage `json:"teaser"`
	Path        json.RawMessage `json:"path"`
	ThumbImage  json.RawMessage `json:"thumb_image"`
	Description json.RawMessage `json:"description"`
}

// EmptyDescription is used when a record's metatag carries no description.
var EmptyDescription = json.RawMessage(`""`)
