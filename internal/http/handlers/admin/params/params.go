// Package params разбирает параметры пути административных маршрутов.
package params

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
)

// ErrInvalidSiteID возвращается, если {id} в пути не положительное целое.
var ErrInvalidSiteID = errors.New("invalid site id")

// SiteID возвращает ID сайта из параметра пути {id}.
func SiteID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidSiteID
	}
	return id, nil
}
