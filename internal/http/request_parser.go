// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing and validating request bodies
// and query strings.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON object from the request body into dst.
// Malformed bodies are reported as core.ErrInvalidInput.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: request body is empty", core.ErrInvalidInput)
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: request body too large", core.ErrInvalidInput)
		case errors.Is(err, core.ErrInvalidInput):
			return err
		default:
			return fmt.Errorf("%w: malformed JSON: %v", core.ErrInvalidInput, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must contain a single JSON object", core.ErrInvalidInput)
	}
	return nil
}

// parseOptionalDate parses a YYYY-MM-DD query value; empty yields the zero date.
func parseOptionalDate(query url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, fmt.Errorf("%w (%s)", err, key)
	}
	return d, nil
}

// ParsePeriodQuery extracts period, start_date and end_date. The period tag
// is resolved later; unknown tags fall back to the current month.
func ParsePeriodQuery(query url.Values) (services.PeriodQuery, error) {
	start, err := parseOptionalDate(query, "start_date")
	if err != nil {
		return services.PeriodQuery{}, err
	}
	end, err := parseOptionalDate(query, "end_date")
	if err != nil {
		return services.PeriodQuery{}, err
	}
	return services.PeriodQuery{
		Period: strings.ToLower(strings.TrimSpace(query.Get("period"))),
		Start:  start,
		End:    end,
	}, nil
}

// ParseTransactionFilter builds the listing filter for userID from the
// category, type, start_date and end_date query values.
func ParseTransactionFilter(userID string, query url.Values) (storage.TransactionFilter, error) {
	f := storage.TransactionFilter{
		UserID:   userID,
		Category: sanitizeInput(query.Get("category")),
	}
	if v := strings.TrimSpace(query.Get("type")); v != "" {
		kind := core.TransactionKind(strings.ToLower(v))
		if !kind.IsValid() {
			return storage.TransactionFilter{}, fmt.Errorf("%w: unknown transaction type %q", core.ErrInvalidInput, v)
		}
		f.Kind = kind
	}
	var err error
	if f.From, err = parseOptionalDate(query, "start_date"); err != nil {
		return storage.TransactionFilter{}, err
	}
	if f.To, err = parseOptionalDate(query, "end_date"); err != nil {
		return storage.TransactionFilter{}, err
	}
	return f, nil
}

// wantsRefresh reports whether budgets should be evaluated before a read.
// Only an explicit refresh=false opts out.
func wantsRefresh(query url.Values) (bool, error) {
	v := strings.TrimSpace(query.Get("refresh"))
	if v == "" {
		return true, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: refresh must be true or false", core.ErrInvalidInput)
	}
	return b, nil
}

// sanitizeInput removes potentially dangerous characters and trims whitespace
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	// Remove control characters except tab, newline, carriage return
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeInput(*s)
	return &v
}
