// Package extract pulls daily price windows from the Alpha Vantage
// TIME_SERIES_DAILY endpoint.
//
// A fetch is one HTTP GET. The response is either parsed in full into a
// stageswap.RunWindow or rejected with a *stageswap.SourceUnavailableError
// carrying the provider's diagnostic text; no partial window is returned.
package extract
