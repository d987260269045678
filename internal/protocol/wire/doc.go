// Package wire encodes and decodes one schema type to the tag-sparse sproto
// struct layout.
//
// A struct body is [u16 slot count][slot count x u16 entries][data region].
// An even entry v carries an inline value v/2-1, or points at the next data
// block when that value is negative. An odd entry skips (v-1)/2 tags. Data
// blocks are [u32 length][payload], little-endian throughout.
//
// Values reach the encoder through a Visitor (pull) and leave the decoder
// through a Consumer (push). Object, Map and plain []any are the stock
// containers; callers with their own storage implement the two interfaces.
package wire
