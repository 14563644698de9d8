package upstream

import "errors"

// ErrUnavailable indicates a transport-level failure talking to the ERP:
// connection refused, timeout, or a dropped response. Callers may retry.
var ErrUnavailable = errors.New("upstream_unavailable")

// ErrQuery indicates the ERP accepted the request but rejected the query
// itself (bad form id, malformed filter, permission failure). Retrying the
// identical request will fail the same way.
var ErrQuery = errors.New("upstream_query_error")
