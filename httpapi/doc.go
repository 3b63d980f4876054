// Package httpapi exposes snapshot pushes, commit listing, repository
// management and terminal error classification as a small JSON HTTP API.
//
// Every endpoint except classify expects an "Authorization: Bearer <token>"
// header; the token is passed through to the backend unchanged and never
// logged. Every response carries an X-Request-Id header.
//
//	POST /api/push      {owner?, repo, branch?, files[], commitMessage}
//	GET  /api/commits   ?owner=&repo=&branch=&per_page=
//	GET  /api/repos     ?limit=
//	POST /api/repos     {name, description?, private?}
//	POST /api/classify  {output}
package httpapi
