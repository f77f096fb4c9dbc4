package connector

import (
	"maps"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// DSNBuilder builds URL-style connection strings. Query parameters are
// emitted in sorted order so that equal configs produce equal DSNs.
type DSNBuilder struct {
	scheme   string
	username string
	password string
	host     string
	port     int
	database string
	params   map[string]string
}

// NewDSNBuilder creates a new DSN builder
func NewDSNBuilder(scheme string) *DSNBuilder {
	return &DSNBuilder{
		scheme: scheme,
		params: make(map[string]string),
	}
}

// Auth sets username and password
func (b *DSNBuilder) Auth(username, password string) *DSNBuilder {
	b.username = username
	b.password = password
	return b
}

// Host sets the host and port
func (b *DSNBuilder) Host(host string, port int) *DSNBuilder {
	b.host = host
	b.port = port
	return b
}

// Database sets the database name
func (b *DSNBuilder) Database(name string) *DSNBuilder {
	b.database = name
	return b
}

// Param adds a single parameter. Empty values are skipped.
func (b *DSNBuilder) Param(key, value string) *DSNBuilder {
	if value != "" {
		b.params[key] = value
	}
	return b
}

// Params adds multiple parameters
func (b *DSNBuilder) Params(params map[string]string) *DSNBuilder {
	for k, v := range params {
		b.Param(k, v)
	}
	return b
}

// Build constructs the final DSN string
func (b *DSNBuilder) Build() string {
	u := url.URL{Scheme: b.scheme, Host: b.host}

	if b.username != "" {
		if b.password != "" {
			u.User = url.UserPassword(b.username, b.password)
		} else {
			u.User = url.User(b.username)
		}
	}
	if b.port > 0 {
		u.Host = net.JoinHostPort(b.host, strconv.Itoa(b.port))
	}
	if b.database != "" {
		u.Path = "/" + b.database
	}

	if len(b.params) > 0 {
		var q strings.Builder
		for i, key := range slices.Sorted(maps.Keys(b.params)) {
			if i > 0 {
				q.WriteByte('&')
			}
			q.WriteString(url.QueryEscape(key))
			q.WriteByte('=')
			q.WriteString(url.QueryEscape(b.params[key]))
		}
		u.RawQuery = q.String()
	}

	return u.String()
}
