package linebot

// SetSync makes event processing synchronous so tests can assert on the
// recorded API calls right after ServeHTTP returns.
func SetSync(h *Handler) { h.wait = true }
