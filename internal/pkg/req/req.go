/*
Package req provides helper functions for HTTP request parsing and data binding.

It decodes JSON bodies of control API requests strictly and maps decoding failures
to application error codes.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"wschat/internal/pkg/errs"
)

// MaxBodySize bounds the size of a control API request body.
const MaxBodySize int64 = 64 << 10 // 64 KB

// BindJSON decodes the JSON request body into dst. Unknown fields, trailing data, and
// bodies larger than MaxBodySize are rejected.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}

// QueryInt parses a non-negative integer query parameter, returning def when it is absent.
func QueryInt(r *http.Request, key string, def int) (int, *errs.CustomError) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errs.NewError(errs.ErrInvalidParams)
	}
	return n, nil
}
