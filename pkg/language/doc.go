// Package language detects the dominant language of extracted text and
// translates it into the canonical language before AI extraction.
//
// Translation is best effort: when the translator fails the original text is
// kept and the result is marked degraded so the validator can lower the
// confidence score.
package language
