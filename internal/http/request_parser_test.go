package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"fintrack/internal/core"
)

func TestParsePeriodQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    string
		start   string
		end     string
		wantErr bool
	}{
		{name: "empty", query: "", want: ""},
		{name: "tag is lowercased", query: "period=WEEK", want: "week"},
		{name: "custom bounds", query: "period=custom&start_date=2025-03-01&end_date=2025-03-31", want: "custom", start: "2025-03-01", end: "2025-03-31"},
		{name: "bad start", query: "start_date=2025-13-01", wantErr: true},
		{name: "bad end", query: "end_date=yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, _ := url.ParseQuery(tt.query)
			got, err := ParsePeriodQuery(values)
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidInput) {
					t.Fatalf("ParsePeriodQuery() error = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePeriodQuery() error = %v", err)
			}
			if got.Period != tt.want {
				t.Errorf("Period = %q, want %q", got.Period, tt.want)
			}
			if got.Start.String() != tt.start || got.End.String() != tt.end {
				t.Errorf("bounds = %s..%s, want %s..%s", got.Start, got.End, tt.start, tt.end)
			}
		})
	}
}

func TestParseTransactionFilter(t *testing.T) {
	values := url.Values{
		"category":   {"  Food & Dining\x00 "},
		"type":       {"Income"},
		"start_date": {"2025-03-01"},
	}
	f, err := ParseTransactionFilter("u1", values)
	if err != nil {
		t.Fatalf("ParseTransactionFilter() error = %v", err)
	}
	if f.UserID != "u1" || f.Category != "Food & Dining" || f.Kind != core.KindIncome {
		t.Errorf("unexpected filter: %+v", f)
	}
	if f.From.String() != "2025-03-01" || !f.To.IsZero() {
		t.Errorf("unexpected range: %s..%s", f.From, f.To)
	}

	if _, err := ParseTransactionFilter("u1", url.Values{"type": {"transfer"}}); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("unknown type error = %v, want ErrInvalidInput", err)
	}
}

func TestWantsRefresh(t *testing.T) {
	tests := []struct {
		query   string
		want    bool
		wantErr bool
	}{
		{"", true, false},
		{"refresh=true", true, false},
		{"refresh=false", false, false},
		{"refresh=0", false, false},
		{"refresh=later", false, true},
	}
	for _, tt := range tests {
		values, _ := url.ParseQuery(tt.query)
		got, err := wantsRefresh(values)
		if (err != nil) != tt.wantErr {
			t.Errorf("wantsRefresh(%q) error = %v, wantErr %v", tt.query, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("wantsRefresh(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Amount core.Money `json:"amount"`
	}

	tests := []struct {
		name    string
		body    string
		want    int64
		wantErr bool
	}{
		{name: "number", body: `{"amount": 12.34}`, want: 1234},
		{name: "string amount", body: `{"amount": "7,5"}`, want: 750},
		{name: "empty", body: ``, wantErr: true},
		{name: "negative", body: `{"amount": -1}`, wantErr: true},
		{name: "trailing data", body: `{"amount": 1} []`, wantErr: true},
		{name: "oversized", body: `{"amount": 1, "pad": "` + strings.Repeat("x", maxBodyBytes) + `"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := decodeJSON(w, r, &p)
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidInput) {
					t.Fatalf("decodeJSON() error = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeJSON() error = %v", err)
			}
			if p.Amount.Cents != tt.want {
				t.Errorf("Amount = %d, want %d", p.Amount.Cents, tt.want)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x00b\tc\n "); got != "ab\tc" {
		t.Errorf("sanitizeInput() = %q", got)
	}
	if sanitizePtr(nil) != nil {
		t.Error("sanitizePtr(nil) should be nil")
	}
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"":             "",
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearerabc":    "",
		"Bearer":       "",
	}
	for header, want := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		if got := bearerToken(r); got != want {
			t.Errorf("bearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}
