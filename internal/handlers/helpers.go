package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	domain "github.com/tthaingoc/EcoFashion-sub009/internal/domain"
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body exceeds limit")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = 16 * 1024
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func parseLimitParam(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return limit, nil
}

// itemRefFromPath rebuilds an ItemRef from the /{itemKind}/{itemID} route segments.
func itemRefFromPath(kind, id string) (domain.ItemRef, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.ItemRef{}, false
	}
	switch strings.TrimSpace(kind) {
	case "material":
		return domain.ItemRef{MaterialID: id}, true
	case "product":
		return domain.ItemRef{ProductID: id}, true
	default:
		return domain.ItemRef{}, false
	}
}

// itemRefPayload is the JSON shape used for item references in requests and responses.
type itemRefPayload struct {
	MaterialID string `json:"materialId,omitempty"`
	ProductID  string `json:"productId,omitempty"`
}

func (p itemRefPayload) toDomain() domain.ItemRef {
	return domain.ItemRef{
		MaterialID: strings.TrimSpace(p.MaterialID),
		ProductID:  strings.TrimSpace(p.ProductID),
	}
}

func itemRefView(ref domain.ItemRef) itemRefPayload {
	return itemRefPayload{MaterialID: ref.MaterialID, ProductID: ref.ProductID}
}
