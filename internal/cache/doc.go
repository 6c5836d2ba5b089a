// Package cache holds recently formatted tool results so repeated identical
// calls within a short window are answered without another upstream request.
package cache
