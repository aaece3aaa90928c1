package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/openbid/auction-core/internal/model"
	"github.com/openbid/auction-core/internal/repository"
	"github.com/openbid/auction-core/internal/services"
	xhttp "github.com/openbid/auction-core/pkg/http"
)

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors onto status codes. Unknown errors get
// a generic 500 body so internals never reach the client.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	var invalid *model.InvalidTransitionError
	switch {
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrAuctionNotFound),
		errors.Is(err, repository.ErrSettlementNotFound),
		errors.Is(err, repository.ErrFulfillmentNotFound),
		errors.Is(err, repository.ErrEntryNotFound),
		errors.Is(err, repository.ErrNoBids):
		writeError(ctx, 404, err.Error())
	case errors.Is(err, services.ErrAuctionNotActive),
		errors.Is(err, services.ErrPriceRaced),
		errors.Is(err, services.ErrIdempotencyKeyConflict),
		errors.Is(err, services.ErrFulfillmentUserMismatch),
		errors.Is(err, services.ErrNoWinner),
		errors.Is(err, model.ErrLedgerImmutable),
		errors.As(err, &invalid):
		writeError(ctx, 409, err.Error())
	case errors.Is(err, services.ErrInsufficientCredits):
		writeError(ctx, 422, err.Error())
	case errors.Is(err, model.ErrZeroAmount),
		errors.Is(err, model.ErrAmountKindMismatch),
		errors.Is(err, model.ErrEndBeforeStart),
		errors.Is(err, model.ErrOutsideExtensionWindow):
		writeError(ctx, 400, err.Error())
	default:
		writeError(ctx, xhttp.StatusInternalServerError, xhttp.StatusText(xhttp.StatusInternalServerError))
	}
}

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, ok := ctx.UserValue(name).(string)
	if !ok {
		return 0, errors.New("missing path parameter " + name)
	}
	return strconv.ParseInt(v, 10, 64)
}

func queryParam(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func queryInt(ctx *xhttp.RequestCtx, key string) int {
	n, _ := strconv.Atoi(queryParam(ctx, key))
	return n
}

// parseRFC3339 accepts RFC3339 or YYYY-MM-DD.
func parseRFC3339(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
