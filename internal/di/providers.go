package di

import (
	"vanity/internal/httpx"
	"vanity/internal/structures"
)

func provideHTTPClient(conf *structures.Config) *httpx.Client {
	return httpx.New(conf.Upstream.Timeout)
}
