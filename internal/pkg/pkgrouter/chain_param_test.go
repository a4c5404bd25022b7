package pkgrouter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/simtrack/internal/pkg/pkgerror"
)

func TestChainOrderSkipsNil(t *testing.T) {
	order := make([]string, 0, 3)

	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), mw("cid"), nil, mw("limit"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/sim-cards/bulk", nil))

	if !reflect.DeepEqual(order, []string{"cid", "limit", "handler"}) {
		t.Fatalf("unexpected order: %#v", order)
	}
}

// chunkedBody hides the length so only the read cap can catch it.
type chunkedBody struct{ io.Reader }

func TestLimitBody(t *testing.T) {
	tests := []struct {
		name       string
		limit      int64
		body       string
		hideLength bool
		wantCode   int
		wantRead   string
		wantTooBig bool
	}{
		{name: "under limit", limit: 16, body: "serial_number\n", wantCode: http.StatusOK, wantRead: "serial_number\n"},
		{name: "declared length over limit", limit: 4, body: "serial_number\n", wantCode: http.StatusRequestEntityTooLarge},
		{name: "streamed past limit", limit: 4, body: "serial_number\n", hideLength: true, wantCode: http.StatusOK, wantTooBig: true},
		{name: "disabled", limit: 0, body: "serial_number\n", wantCode: http.StatusOK, wantRead: "serial_number\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var read string
			var tooBig bool
			h := LimitBody(tt.limit)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				b, err := io.ReadAll(r.Body)
				var maxErr *http.MaxBytesError
				tooBig = errors.As(err, &maxErr)
				read = string(b)
			}))

			req := httptest.NewRequest(http.MethodPost, "/sim-cards/uploads", strings.NewReader(tt.body))
			if tt.hideLength {
				req.ContentLength = -1
				req.Body = io.NopCloser(chunkedBody{strings.NewReader(tt.body)})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if tooBig != tt.wantTooBig {
				t.Fatalf("expected MaxBytesError=%v, got %v", tt.wantTooBig, tooBig)
			}
			if tt.wantRead != "" && read != tt.wantRead {
				t.Fatalf("expected body %q, got %q", tt.wantRead, read)
			}
		})
	}
}

func TestParams(t *testing.T) {
	params := httprouter.Params{
		{Key: "batch_id", Value: " 0190a1b2 "},
		{Key: "serial", Value: "  "},
	}
	ctx := context.WithValue(context.Background(), httprouter.ParamsKey, params)

	if got := GetParam(ctx, "batch_id"); got != "0190a1b2" {
		t.Fatalf("expected trimmed batch_id, got %q", got)
	}

	got, err := RequiredParam(ctx, "batch_id")
	if err != nil || got != "0190a1b2" {
		t.Fatalf("expected batch_id, got %q (%v)", got, err)
	}

	_, err = RequiredParam(ctx, "serial")
	var gerr *pkgerror.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *pkgerror.Error, got %v", err)
	}
	if gerr.StatusCode() != http.StatusUnprocessableEntity || gerr.Fields()["serial"] != "is required" {
		t.Fatalf("unexpected error: status=%d fields=%v", gerr.StatusCode(), gerr.Fields())
	}
}

func TestRoutesInRegistrationOrder(t *testing.T) {
	r := NewRouter(&staticGenerator{value: "cid"})
	noop := func(context.Context, *http.Request) (any, error) { return nil, nil }
	r.POST("/sim-cards/uploads", noop, LimitBody(1<<10))
	r.GET("/sim-cards/uploads/:batch_id", noop)

	want := []Route{
		{Method: http.MethodGet, Path: "/"},
		{Method: http.MethodGet, Path: "/health"},
		{Method: http.MethodPost, Path: "/sim-cards/uploads"},
		{Method: http.MethodGet, Path: "/sim-cards/uploads/:batch_id"},
	}
	if got := r.Routes(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected routes: %#v", got)
	}
}
