// Package authinit starts the Google consent flow.
//
// In redirect mode the consent URL comes from the backend (or is built
// locally when the backend has none) and the user leaves the dashboard; the
// provider's redirect is later handed to callback.Resolver. In popup mode a
// one-shot local listener receives the code and Await returns it for the
// resolver.
package authinit
