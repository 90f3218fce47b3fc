package httpx

import "golang.org/x/crypto/acme/autocert"

const certCacheDir = "cache/certs"

// certManager gets Let's Encrypt certificates,
// only for the domain when it's set.
func certManager(domain string) *autocert.Manager {
	m := autocert.Manager{
		Prompt: autocert.AcceptTOS,
		Cache:  autocert.DirCache(certCacheDir),
	}
	if domain != "" {
		m.HostPolicy = autocert.HostWhitelist(domain)
	}
	return &m
}
