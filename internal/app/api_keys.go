package app

import (
	"crypto/subtle"
	"net/http"
)

// StatusAPIOpen reports whether the status API accepts requests without a key.
func (app *Application) StatusAPIOpen() bool {
	return len(app.Config.HTTP.APIKeys) == 0
}

func (app *Application) RequestHasInvalidAPIKey(r *http.Request) bool {
	if app.StatusAPIOpen() {
		return false
	}
	key := r.URL.Query().Get("key")
	return app.IsInvalidAPIKey(key)
}

func (app *Application) IsInvalidAPIKey(key string) bool {
	if key == "" {
		return true
	}

	for _, validKey := range app.Config.HTTP.APIKeys {
		// constant time compare
		if subtle.ConstantTimeCompare([]byte(key), []byte(validKey)) == 1 {
			return false
		}
	}

	return true
}
