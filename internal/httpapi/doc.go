// Package httpapi mounts an Engine on a chi router: registration, login,
// refresh-cookie rotation, self revocation, identity lookup and a guarded
// sample route. cmd/tokenauth-server serves it.
package httpapi
