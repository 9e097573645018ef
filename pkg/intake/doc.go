// Package intake gets documents into the pipeline.
//
// DirectoryManager owns the staging area (inbox, processed, failed, dlq).
// Watcher turns files appearing in the inbox into enqueue calls, and Uploader
// stores uploaded bytes in the inbox under a collision-free name.
package intake
