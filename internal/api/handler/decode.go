package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/mcoot/cardroom/internal/model"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 64 << 10

// decodeBody reads a JSON body into v. An empty body is allowed when
// optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	if err != nil {
		return NewInvalidRequestError("invalid request body")
	}
	return nil
}

// pageFromQuery reads limit and offset query parameters
func pageFromQuery(r *http.Request) (model.Page, error) {
	var page model.Page
	q := r.URL.Query()
	for name, dst := range map[string]*int{"limit": &page.Limit, "offset": &page.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return model.Page{}, NewInvalidRequestError(name + " must be a non-negative integer")
		}
		*dst = n
	}
	return page, nil
}
