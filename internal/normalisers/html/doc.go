// Package html turns HTML pages into paragraph text using the x/net/html
// tokenizer. The <title> element becomes the document title; script, style
// and other non-visible elements are dropped.
package html
