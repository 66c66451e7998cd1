// Package http implements the REST surface of the script runner on gin.
//
// POST /run takes a multipart upload whose "file" field holds the script and
// answers {log, result?} or {errors}. The remaining routes serve examples,
// health and, in reuse mode, the shared browser's pages.
package http
