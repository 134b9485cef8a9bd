package server

// CreateScanRequest is the body of POST /scans.
type CreateScanRequest struct {
	URL string `json:"url"`
}

// CreateScanResponse acknowledges an accepted scan.
type CreateScanResponse struct {
	ScanID string `json:"scan_id"`
	Status string `json:"status"`
}

// ErrorResponse is the JSON shape of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
