package database

import (
	"net/url"
	"strings"
)

// ConstructDatabaseURL combines a server URL with a database name and defaults
// sslmode to disable. An empty name returns the base URL untouched; a base URL
// that does not parse is joined textually.
func ConstructDatabaseURL(baseURL, databaseName string) string {
	if databaseName == "" {
		return baseURL
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" {
		return strings.TrimRight(baseURL, "/") + "/" + databaseName + "?sslmode=disable"
	}

	u.Path = "/" + databaseName
	q := u.Query()
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "disable")
	}
	u.RawQuery = q.Encode()
	return u.String()
}
