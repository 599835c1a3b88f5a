package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strconv"
	"strings"
)

// DecodeJSON decodes exactly one JSON object, rejecting unknown fields and
// trailing content.
func DecodeJSON(body io.Reader, v interface{}) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must contain a single JSON object")
	}
	return nil
}

// Page is a bounded limit/offset window parsed from list query parameters.
type Page struct {
	Limit  int64
	Offset int64
}

func ParsePage(values url.Values, defaultLimit, maxLimit int64) (Page, error) {
	page := Page{Limit: defaultLimit}

	rawLimit := strings.TrimSpace(values.Get("limit"))
	if rawLimit != "" {
		parsed, err := strconv.ParseInt(rawLimit, 10, 64)
		if err != nil || parsed <= 0 {
			return Page{}, errors.New("invalid limit")
		}
		page.Limit = parsed
	}

	rawOffset := strings.TrimSpace(values.Get("offset"))
	if rawOffset != "" {
		parsed, err := strconv.ParseInt(rawOffset, 10, 64)
		if err != nil || parsed < 0 {
			return Page{}, errors.New("invalid offset")
		}
		page.Offset = parsed
	}

	if page.Limit > maxLimit {
		page.Limit = maxLimit
	}

	return page, nil
}
