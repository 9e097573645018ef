// Package extract converts uploaded documents into plain UTF-8 text.
//
// Supported inputs are plain text (UTF-8, UTF-16 with BOM, or Windows-1252),
// PDF, Office Open XML (.docx) and legacy Word 97-2003 (.doc). Failures are
// classified: unreadable files are transient, everything about the document
// itself (unsupported, corrupt, empty) is a format failure that retrying
// cannot fix.
package extract
