// Package wxproto implements the weather telemetry wire format.
//
// Frame binary representation: field:size in bytes
// header:1 [section:width]...
// Header is a bitmask of included categories. Sections follow in ascending bit
// order, each present iff its bit is set. There is no type tag or length inside
// a section, only position, so both ends must agree on the Schema.
//
// Over TCP every message is prefixed with one dispatch byte (TypeWeather).
// Ingest connection: [type][frame], no response.
// Serve connection: request [type][mask], response [frame] filtered by mask.
//
// Out of scope:
// - authentication, encryption
// - history, only the latest value of each category is kept by the hub
package wxproto
