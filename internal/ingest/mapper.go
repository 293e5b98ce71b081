package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"star-offers/internal/offer"
)

const (
	pagePropsKey   = "pageProps"
	dataKey        = "data"
	metatagKey     = "metatag"
	descriptionKey = "description"
)

// requiredKeys must be present on every record, in the order they are checked.
var requiredKeys = []string{"nid", "title", "teaser", "path", "thumb_image", metatagKey}

var errNull = errors.New("value is null")

// locateOffers finds the offer array in a feed document. found is false when the
// document carries no pageProps key; arrays and strings are searched for a
// "pageProps" element or substring and skipped when it is absent. Scalars, and
// arrays or strings that do contain it, cannot hold a "data" key and are
// unexpected. The array is read from the top-level "data" key, not from inside
// pageProps.
func locateOffers(doc []byte) (records []json.RawMessage, found bool, err error) {
	trimmed := bytes.TrimSpace(doc)
	if len(trimmed) == 0 {
		return nil, false, newError(KindUnexpected, "empty document")
	}

	switch trimmed[0] {
	case '{':
	case '[':
		var elems []any
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, false, newError(KindUnexpected, "top-level array: %w", err)
		}
		for _, e := range elems {
			if e == pagePropsKey {
				return nil, true, newError(KindUnexpected, "top-level value is an array, not an object")
			}
		}
		return nil, false, nil
	case '"':
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return nil, false, newError(KindUnexpected, "top-level string: %w", err)
		}
		if strings.Contains(str, pagePropsKey) {
			return nil, true, newError(KindUnexpected, "top-level value is a string, not an object")
		}
		return nil, false, nil
	default:
		return nil, false, newError(KindUnexpected, "top-level value %s is not an object", trimmed)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &top); err != nil {
		return nil, false, newError(KindUnexpected, "top-level object: %w", err)
	}
	if _, ok := top[pagePropsKey]; !ok {
		return nil, false, nil
	}

	data, ok := top[dataKey]
	if !ok {
		return nil, true, newError(KindField, "missing key %q", dataKey)
	}
	records, err = iterate(data)
	if err != nil {
		return nil, true, err
	}
	return records, true, nil
}

// iterate yields the records held by data. Only arrays carry records; an empty
// object or string iterates to nothing, anything else is unexpected.
func iterate(data json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if isNull(trimmed) {
		return nil, newError(KindUnexpected, "%q: %w", dataKey, errNull)
	}

	var records []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, newError(KindUnexpected, "%q: %w", dataKey, err)
		}
		return records, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, newError(KindUnexpected, "%q: %w", dataKey, err)
		}
		if len(obj) == 0 {
			return []json.RawMessage{}, nil
		}
	case '"':
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return nil, newError(KindUnexpected, "%q: %w", dataKey, err)
		}
		if str == "" {
			return []json.RawMessage{}, nil
		}
	}
	return nil, newError(KindUnexpected, "%q is not an array of records", dataKey)
}

// Project reduces one feed record to an offer. A missing key is a field error;
// a record or metatag that is not an object is unexpected.
func Project(raw json.RawMessage) (offer.Offer, error) {
	record, err := decodeObject(raw)
	if err != nil {
		return offer.Offer{}, newError(KindUnexpected, "offer record is not an object: %w", err)
	}

	for _, key := range requiredKeys {
		if _, ok := record[key]; !ok {
			return offer.Offer{}, newError(KindField, "missing key %q", key)
		}
	}

	meta, err := decodeObject(record[metatagKey])
	if err != nil {
		return offer.Offer{}, newError(KindUnexpected, "%q is not an object: %w", metatagKey, err)
	}

	description, ok := meta[descriptionKey]
	if !ok {
		description = offer.EmptyDescription
	}

	fields := []json.RawMessage{
		record["nid"], record["title"], record["teaser"], record["path"], record["thumb_image"], description,
	}
	for i, raw := range fields {
		if fields[i], err = reencode(raw); err != nil {
			return offer.Offer{}, newError(KindUnexpected, "re-encode value: %w", err)
		}
	}

	return offer.Offer{
		NID:         fields[0],
		Title:       fields[1],
		Teaser:      fields[2],
		Path:        fields[3],
		ThumbImage:  fields[4],
		Description: fields[5],
	}, nil
}

func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	if isNull(raw) {
		return nil, errNull
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
