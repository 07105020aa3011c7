// Package tokens provides a cheap, length-based token count approximation.
//
// Counts are ceil(runes/4). Estimator caches counts by key so repeated
// estimates of the same chunk or message are served from memory.
package tokens
